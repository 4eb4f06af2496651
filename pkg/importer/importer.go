// Package importer ingests vault data from external password-manager
// files. Each format is a parsing strategy registered once at startup;
// parsed items pass fail-fast validation before anything is written, so a
// rejected file creates zero items.
package importer

import (
	"context"
	"sort"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/logger"
	"github.com/dasien/bwcli/pkg/vault"
)

// Format ids.
const (
	FormatBitwardenCSV  = "bitwardencsv"
	FormatBitwardenJSON = "bitwardenjson"
	FormatEncryptedJSON = "encrypted_json"
	FormatLastPass      = "lastpass"
	FormatOnePassword   = "1password"
	FormatChrome        = "chrome"
)

// MaxFileSize is the import size cap.
const MaxFileSize = 100 << 20 // 100 MiB

// Options carries per-import settings.
type Options struct {
	// Password decrypts an encrypted_json file. Ignored by other formats.
	Password *crypto.Secret
}

// Parser converts file bytes into the import model.
type Parser interface {
	// Parse decodes data. An empty file succeeds with zero items.
	Parse(data []byte, opts Options) (*vault.ImportData, error)
}

// VaultWriter is the collaborator that persists validated items. Nothing
// is written when validation fails.
type VaultWriter interface {
	// WriteItems stores folders and items, returning the number of items
	// created.
	WriteItems(ctx context.Context, folders []vault.FolderView, items []vault.CipherView) (int, error)
}

// Result summarizes a completed import.
type Result struct {
	ItemsCreated int
	FolderCount  int
}

var parsers = map[string]Parser{
	FormatBitwardenCSV:  &bitwardenCSVParser{},
	FormatBitwardenJSON: &bitwardenJSONParser{},
	FormatEncryptedJSON: &encryptedJSONParser{},
	FormatLastPass:      &lastPassParser{},
	FormatOnePassword:   &onePasswordParser{},
	FormatChrome:        &chromeParser{},
}

// Formats returns the supported format ids, sorted.
func Formats() []string {
	ids := make([]string, 0, len(parsers))
	for id := range parsers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Import parses, validates, and writes a vault file. Validation is
// all-or-nothing: every error is accumulated and reported together, and
// the writer is not invoked when any item fails.
func Import(ctx context.Context, writer VaultWriter, format string, data []byte, opts Options) (*Result, error) {
	if int64(len(data)) > MaxFileSize {
		return nil, errors.NewImportFileTooLargeError(int64(len(data)), MaxFileSize)
	}

	parser, ok := parsers[format]
	if !ok {
		return nil, errors.NewImportUnsupportedFormatError(format)
	}

	parsed, err := parser.Parse(data, opts)
	if err != nil {
		return nil, err
	}

	if err := Validate(parsed); err != nil {
		return nil, err
	}

	created, err := writer.WriteItems(ctx, parsed.Folders, parsed.Items)
	if err != nil {
		return nil, err
	}

	logger.Infow("import complete", "format", format, "items", created, "folders", len(parsed.Folders))
	return &Result{ItemsCreated: created, FolderCount: len(parsed.Folders)}, nil
}

// Validate checks every item and reports all failures at once.
func Validate(data *vault.ImportData) error {
	var errs []errors.ValidationError

	add := func(i int, field, message string) {
		line := i + 1
		if i < len(data.Lines) && data.Lines[i] > 0 {
			line = data.Lines[i]
		}
		errs = append(errs, errors.ValidationError{Line: line, Field: field, Message: message})
	}

	for i := range data.Items {
		item := &data.Items[i]

		if item.Name == "" {
			add(i, "name", "Name is required")
		}

		switch item.Type {
		case vault.TypeLogin:
			if item.Login == nil || (item.Login.Username == "" && item.Login.Password == "") {
				add(i, "login", "Username or password is required")
			}
		case vault.TypeCard:
			if item.Card == nil || item.Card.Number == "" {
				add(i, "card", "Card number is required")
			}
		case vault.TypeSecureNote, vault.TypeIdentity:
			// No required payload fields.
		default:
			add(i, "type", "Unknown item type")
		}

		if item.Login != nil {
			for _, uri := range item.Login.URIs {
				if uri.URI == "" {
					add(i, "login_uri", "URIs must not be empty")
				}
			}
		}

		if err := checkPayloadAgreement(item); err != "" {
			add(i, "type", err)
		}
	}

	if len(errs) > 0 {
		return errors.NewImportValidationError(errs)
	}
	return nil
}

// checkPayloadAgreement verifies an item carries only the payload matching
// its type.
func checkPayloadAgreement(item *vault.CipherView) string {
	payloads := []struct {
		name    string
		present bool
		belongs bool
	}{
		{"login", item.Login != nil, item.Type == vault.TypeLogin},
		{"secure note", item.SecureNote != nil, item.Type == vault.TypeSecureNote},
		{"card", item.Card != nil, item.Type == vault.TypeCard},
		{"identity", item.Identity != nil, item.Type == vault.TypeIdentity},
	}
	for _, p := range payloads {
		if p.present && !p.belongs {
			return "Item carries a " + p.name + " payload that does not match its type"
		}
	}
	return ""
}
