// Package totp generates time-based one-time passwords for login items,
// accepting either a raw base32 secret or a full otpauth:// URL.
package totp

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/dasien/bwcli/pkg/errors"
)

const (
	defaultPeriod = 30
	defaultDigits = otp.DigitsSix
)

// Code is a generated one-time password and its remaining validity.
type Code struct {
	Code             string
	SecondsRemaining int
}

// Generate produces the one-time password for the given secret at the
// given time. The secret may be an otpauth:// URL, which carries its own
// digits, period, and algorithm, or a raw base32 string using the
// defaults.
func Generate(secret string, now time.Time) (*Code, error) {
	key, period, opts, err := resolve(secret)
	if err != nil {
		return nil, err
	}

	code, err := totp.GenerateCodeCustom(key, now, opts)
	if err != nil {
		return nil, errors.NewMalformedError("one-time password secret is not valid base32")
	}

	remaining := period - int(now.Unix()%int64(period))
	return &Code{Code: code, SecondsRemaining: remaining}, nil
}

func resolve(secret string) (string, int, totp.ValidateOpts, error) {
	opts := totp.ValidateOpts{
		Period:    defaultPeriod,
		Digits:    defaultDigits,
		Algorithm: otp.AlgorithmSHA1,
	}

	if !strings.HasPrefix(strings.ToLower(secret), "otpauth://") {
		return normalizeSecret(secret), defaultPeriod, opts, nil
	}

	key, err := otp.NewKeyFromURL(secret)
	if err != nil {
		return "", 0, opts, errors.NewMalformedError("invalid otpauth url")
	}

	if period := key.Period(); period > 0 {
		opts.Period = uint(period)
	}
	if digits := key.Digits(); digits > 0 {
		opts.Digits = digits
	}
	opts.Algorithm = key.Algorithm()

	return normalizeSecret(key.Secret()), int(opts.Period), opts, nil
}

// normalizeSecret uppercases and strips the spaces and dashes sites like
// to insert into displayed secrets.
func normalizeSecret(secret string) string {
	s := strings.ToUpper(secret)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}
