package importer

import (
	"encoding/json"

	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/vault"
)

// jsonImportFile is the native JSON export shape.
type jsonImportFile struct {
	Encrypted bool               `json:"encrypted"`
	Folders   []vault.FolderView `json:"folders"`
	Items     []vault.CipherView `json:"items"`
}

type bitwardenJSONParser struct{}

func (*bitwardenJSONParser) Parse(data []byte, _ Options) (*vault.ImportData, error) {
	data = stripBOM(data)
	if len(data) == 0 {
		return &vault.ImportData{}, nil
	}

	var file jsonImportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.NewImportParseError(0, "file is not a valid vault export", err)
	}
	if file.Encrypted {
		return nil, errors.NewImportParseError(0, "file is encrypted; use the encrypted_json format", nil)
	}

	return &vault.ImportData{Folders: file.Folders, Items: file.Items}, nil
}
