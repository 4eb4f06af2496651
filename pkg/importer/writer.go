package importer

import (
	"context"

	"github.com/dasien/bwcli/pkg/client"
	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/vault"
)

// APIWriter persists imported items through the vault service, encrypting
// every value under the user key before it leaves the process.
type APIWriter struct {
	client  *client.Client
	userKey *crypto.SymmetricKey
}

// NewAPIWriter creates a writer over an authenticated client and the
// unlocked user key.
func NewAPIWriter(c *client.Client, userKey *crypto.SymmetricKey) *APIWriter {
	return &APIWriter{client: c, userKey: userKey}
}

// WriteItems creates the folders first, then the items, rewriting each
// item's folder reference (a name or a file-local id) to the id the
// service assigned.
func (w *APIWriter) WriteItems(ctx context.Context, folders []vault.FolderView, items []vault.CipherView) (int, error) {
	folderIDs := make(map[string]string, len(folders))

	for _, folder := range folders {
		name, err := crypto.Encrypt([]byte(folder.Name), w.userKey)
		if err != nil {
			return 0, err
		}
		created, err := client.PostWithAuth[vault.Folder](ctx, w.client, "/folders", vault.Folder{Name: name.String()})
		if err != nil {
			return 0, err
		}
		folderIDs[folder.Name] = created.ID
		if folder.ID != "" {
			folderIDs[folder.ID] = created.ID
		}
	}

	created := 0
	for i := range items {
		item := items[i]
		if id, ok := folderIDs[item.FolderID]; ok {
			item.FolderID = id
		}

		cipher, err := vault.EncryptCipher(&item, w.userKey)
		if err != nil {
			return created, err
		}
		if _, err := client.PostWithAuth[vault.Cipher](ctx, w.client, "/ciphers", cipher); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
