package importer

import (
	"strings"

	"github.com/dasien/bwcli/pkg/vault"
)

// lastPassParser reads the LastPass CSV export. Everything is a login
// except rows whose url is the "http://sn" secure-note marker.
type lastPassParser struct{}

const lastPassNoteMarker = "http://sn"

func (*lastPassParser) Parse(data []byte, _ Options) (*vault.ImportData, error) {
	table, err := parseCSVTable(data)
	if err != nil {
		return nil, err
	}

	out := &vault.ImportData{}
	folders := newFolderSet()

	for i, row := range table.rows {
		grouping := table.get(row, "grouping")
		if strings.EqualFold(grouping, "(none)") {
			grouping = ""
		}

		item := vault.CipherView{
			Name:     table.get(row, "name"),
			Notes:    table.get(row, "extra"),
			Favorite: table.get(row, "fav") == "1",
			FolderID: folders.ref(grouping),
		}

		if table.get(row, "url") == lastPassNoteMarker {
			item.Type = vault.TypeSecureNote
			item.SecureNote = &vault.SecureNoteView{}
		} else {
			item.Type = vault.TypeLogin
			login := &vault.LoginView{
				Username: table.get(row, "username"),
				Password: table.get(row, "password"),
				TOTP:     table.get(row, "totp"),
			}
			if uri := table.get(row, "url"); uri != "" {
				login.URIs = append(login.URIs, vault.LoginURIView{URI: uri})
			}
			item.Login = login
		}

		out.Items = append(out.Items, item)
		out.Lines = append(out.Lines, table.lines[i])
	}

	out.Folders = folders.list()
	return out, nil
}
