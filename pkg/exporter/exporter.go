// Package exporter converts the decrypted item model into the supported
// output file formats. Formats are a closed set of strategies registered
// once at startup and looked up by id.
package exporter

import (
	"sort"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/vault"
)

// Format ids.
const (
	FormatCSV           = "csv"
	FormatJSON          = "json"
	FormatEncryptedJSON = "encrypted_json"
)

// Options carries per-export settings.
type Options struct {
	// Password protects an encrypted_json export. Required for that
	// format, ignored by the others.
	Password *crypto.Secret
	// Salt for the export key derivation; typically the account email.
	Salt string
}

// Formatter renders an item set into a file format.
type Formatter interface {
	// Format serializes data. An empty vault still produces a valid file.
	Format(data *vault.ExportData, opts Options) ([]byte, error)
}

var formatters = map[string]Formatter{
	FormatCSV:           &csvFormatter{},
	FormatJSON:          &jsonFormatter{},
	FormatEncryptedJSON: &encryptedJSONFormatter{},
}

// Formats returns the supported format ids, sorted.
func Formats() []string {
	ids := make([]string, 0, len(formatters))
	for id := range formatters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Export renders data in the named format.
func Export(format string, data *vault.ExportData, opts Options) ([]byte, error) {
	formatter, ok := formatters[format]
	if !ok {
		return nil, errors.NewExportUnsupportedFormatError(format)
	}
	return formatter.Format(data, opts)
}

// folderNames indexes folders by id for name lookups during export.
func folderNames(data *vault.ExportData) map[string]string {
	names := make(map[string]string, len(data.Folders))
	for _, f := range data.Folders {
		names[f.ID] = f.Name
	}
	return names
}
