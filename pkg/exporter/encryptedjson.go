package exporter

import (
	"encoding/json"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/crypto/kdf"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/vault"
)

// encKeyValidationValue is the fixed plaintext encrypted alongside the
// payload so an importer can verify the password before decrypting the
// vault data.
const encKeyValidationValue = "encKeyValidation"

// encryptedExport is the password-protected file shape: the unencrypted
// JSON form serialized and wrapped in an EncString, plus a second
// EncString over a known value for password validation.
type encryptedExport struct {
	Encrypted        bool   `json:"encrypted"`
	Salt             string `json:"salt"`
	KdfIterations    int    `json:"kdfIterations"`
	EncKeyValidation string `json:"encKeyValidation_DO_NOT_EDIT"`
	Data             string `json:"data"`
}

type encryptedJSONFormatter struct{}

func (*encryptedJSONFormatter) Format(data *vault.ExportData, opts Options) ([]byte, error) {
	if opts.Password.IsEmpty() {
		return nil, errors.NewExportPasswordRequiredError()
	}

	inner, err := (&jsonFormatter{}).Format(data, opts)
	if err != nil {
		return nil, err
	}

	key, err := kdf.DeriveExportKey(opts.Password, opts.Salt, kdf.ExportKdfIterations)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	validation, err := crypto.Encrypt([]byte(encKeyValidationValue), key)
	if err != nil {
		return nil, err
	}
	payload, err := crypto.Encrypt(inner, key)
	if err != nil {
		return nil, err
	}

	out := encryptedExport{
		Encrypted:        true,
		Salt:             opts.Salt,
		KdfIterations:    kdf.ExportKdfIterations,
		EncKeyValidation: validation.String(),
		Data:             payload.String(),
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.NewSerializationError("encoding encrypted export", err)
	}
	return append(encoded, '\n'), nil
}
