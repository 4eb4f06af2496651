package exporter

import (
	"encoding/json"

	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/vault"
)

// jsonExport is the unencrypted JSON file shape.
type jsonExport struct {
	Encrypted bool               `json:"encrypted"`
	Folders   []vault.FolderView `json:"folders"`
	Items     []vault.CipherView `json:"items"`
}

type jsonFormatter struct{}

func (*jsonFormatter) Format(data *vault.ExportData, _ Options) ([]byte, error) {
	out := jsonExport{
		Encrypted: false,
		Folders:   data.Folders,
		Items:     data.Items,
	}
	// An empty vault still emits valid arrays.
	if out.Folders == nil {
		out.Folders = []vault.FolderView{}
	}
	if out.Items == nil {
		out.Items = []vault.CipherView{}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.NewSerializationError("encoding export", err)
	}
	return append(encoded, '\n'), nil
}
