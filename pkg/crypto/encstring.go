package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/dasien/bwcli/pkg/errors"
)

// EncStringType identifies the cipher suite of an EncString.
type EncStringType int

// Known EncString types.
const (
	// AesCbc256HmacSha256 is AES-256-CBC with HMAC-SHA256 over (IV || CT),
	// encrypt-then-MAC. All symmetric vault values use this type.
	AesCbc256HmacSha256 EncStringType = 2
	// Rsa2048OaepSha1 is RSA-OAEP, used by user-key sharing operations.
	// Recognized by the codec; asymmetric decryption is not performed here.
	Rsa2048OaepSha1 EncStringType = 6
)

const aesBlockSize = 16

// EncString is the canonical encoding for encrypted values, serialized as
// "<type>.<base64(iv)>|<base64(ct)>|<base64(mac)>".
type EncString struct {
	Type EncStringType
	IV   []byte
	CT   []byte
	MAC  []byte
}

// ParseEncString parses the wire form of an EncString. For type 2, the IV
// must decode to 16 bytes and the MAC to 32.
func ParseEncString(s string) (*EncString, error) {
	typeStr, rest, found := strings.Cut(s, ".")
	if !found {
		return nil, errors.NewMalformedError("encrypted string has no type prefix")
	}

	typeNum, err := strconv.Atoi(typeStr)
	if err != nil {
		return nil, errors.NewMalformedError(fmt.Sprintf("encrypted string type %q is not an integer", typeStr))
	}
	encType := EncStringType(typeNum)
	if encType != AesCbc256HmacSha256 && encType != Rsa2048OaepSha1 {
		return nil, errors.NewMalformedError(fmt.Sprintf("unknown encrypted string type %d", typeNum))
	}

	parts := strings.Split(rest, "|")
	if len(parts) != 3 {
		return nil, errors.NewMalformedError("encrypted string must have iv, ciphertext, and mac parts")
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errors.NewMalformedError("encrypted string iv is not valid base64")
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errors.NewMalformedError("encrypted string ciphertext is not valid base64")
	}
	mac, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, errors.NewMalformedError("encrypted string mac is not valid base64")
	}

	if encType == AesCbc256HmacSha256 {
		if len(iv) != aesBlockSize {
			return nil, errors.NewMalformedError("encrypted string iv must be 16 bytes")
		}
		if len(mac) != sha256.Size {
			return nil, errors.NewMalformedError("encrypted string mac must be 32 bytes")
		}
	}

	return &EncString{Type: encType, IV: iv, CT: ct, MAC: mac}, nil
}

// String serializes the EncString to its wire form.
func (e *EncString) String() string {
	return fmt.Sprintf("%d.%s|%s|%s",
		e.Type,
		base64.StdEncoding.EncodeToString(e.IV),
		base64.StdEncoding.EncodeToString(e.CT),
		base64.StdEncoding.EncodeToString(e.MAC),
	)
}

// Encrypt produces a type-2 EncString: a fresh random IV, AES-256-CBC over
// the PKCS7-padded plaintext, and an HMAC-SHA256 over (IV || CT).
func Encrypt(plaintext []byte, key *SymmetricKey) (*EncString, error) {
	iv, err := RandomBytes(aesBlockSize)
	if err != nil {
		return nil, errors.NewKdfFailedError("generating iv", err)
	}

	block, err := aes.NewCipher(key.EncKey())
	if err != nil {
		return nil, errors.NewKdfFailedError("initializing cipher", err)
	}

	padded := pkcs7Pad(plaintext)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	zeroize(padded)

	mac := hmac.New(sha256.New, key.MacKey())
	mac.Write(iv)
	mac.Write(ct)

	return &EncString{
		Type: AesCbc256HmacSha256,
		IV:   iv,
		CT:   ct,
		MAC:  mac.Sum(nil),
	}, nil
}

// Decrypt verifies the MAC in constant time and, only if it matches,
// decrypts and strips the padding.
func (e *EncString) Decrypt(key *SymmetricKey) ([]byte, error) {
	if e.Type != AesCbc256HmacSha256 {
		return nil, errors.NewMalformedError(fmt.Sprintf("cannot decrypt encrypted string type %d with a symmetric key", e.Type))
	}
	if len(e.CT) == 0 || len(e.CT)%aesBlockSize != 0 {
		return nil, errors.NewMalformedError("ciphertext length is not a multiple of the block size")
	}

	mac := hmac.New(sha256.New, key.MacKey())
	mac.Write(e.IV)
	mac.Write(e.CT)
	if !ConstantTimeEqual(mac.Sum(nil), e.MAC) {
		return nil, errors.NewMacMismatchError()
	}

	block, err := aes.NewCipher(key.EncKey())
	if err != nil {
		return nil, errors.NewKdfFailedError("initializing cipher", err)
	}

	padded := make([]byte, len(e.CT))
	cipher.NewCBCDecrypter(block, e.IV).CryptBlocks(padded, e.CT)

	plaintext, err := pkcs7Unpad(padded)
	if err != nil {
		zeroize(padded)
		return nil, err
	}
	return plaintext, nil
}

func pkcs7Pad(data []byte) []byte {
	padLen := aesBlockSize - len(data)%aesBlockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	// The MAC was verified before decryption, so a bad pad means key or
	// implementation error rather than an oracle.
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aesBlockSize || padLen > len(data) {
		return nil, errors.NewMalformedError("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.NewMalformedError("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
