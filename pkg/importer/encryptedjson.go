package importer

import (
	"encoding/json"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/crypto/kdf"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/vault"
)

// encryptedImportFile mirrors the password-protected export wrapper.
type encryptedImportFile struct {
	Encrypted        bool   `json:"encrypted"`
	Salt             string `json:"salt"`
	KdfIterations    int    `json:"kdfIterations"`
	EncKeyValidation string `json:"encKeyValidation_DO_NOT_EDIT"`
	Data             string `json:"data"`
}

type encryptedJSONParser struct{}

func (*encryptedJSONParser) Parse(data []byte, opts Options) (*vault.ImportData, error) {
	data = stripBOM(data)
	if len(data) == 0 {
		return &vault.ImportData{}, nil
	}

	var file encryptedImportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.NewImportParseError(0, "file is not a valid encrypted export", err)
	}
	if !file.Encrypted || file.Data == "" {
		return nil, errors.NewImportParseError(0, "file is not an encrypted export", nil)
	}
	if opts.Password.IsEmpty() {
		return nil, errors.NewImportParseError(0, "file is password protected; a password is required", nil)
	}

	iterations := file.KdfIterations
	if iterations <= 0 {
		iterations = kdf.ExportKdfIterations
	}
	key, err := kdf.DeriveExportKey(opts.Password, file.Salt, iterations)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	// Check the password against the validation EncString before touching
	// the payload, so a wrong password is reported as exactly that.
	validation, err := crypto.ParseEncString(file.EncKeyValidation)
	if err != nil {
		return nil, errors.NewImportParseError(0, "encrypted export has a malformed validation value", err)
	}
	if _, err := validation.Decrypt(key); err != nil {
		return nil, errors.NewInvalidPasswordError()
	}

	payload, err := crypto.ParseEncString(file.Data)
	if err != nil {
		return nil, errors.NewImportParseError(0, "encrypted export has a malformed payload", err)
	}
	inner, err := payload.Decrypt(key)
	if err != nil {
		return nil, errors.NewImportParseError(0, "encrypted export payload failed to decrypt", err)
	}

	return (&bitwardenJSONParser{}).Parse(inner, opts)
}
