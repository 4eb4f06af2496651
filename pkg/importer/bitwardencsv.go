package importer

import (
	"strings"

	"github.com/dasien/bwcli/pkg/vault"
)

// bitwardenCSVParser reads the native CSV export, keyed by the universal
// header columns. Unknown columns are ignored so both the full 34-column
// shape and older trimmed exports load.
type bitwardenCSVParser struct{}

func (*bitwardenCSVParser) Parse(data []byte, _ Options) (*vault.ImportData, error) {
	table, err := parseCSVTable(data)
	if err != nil {
		return nil, err
	}

	out := &vault.ImportData{}
	folders := newFolderSet()

	for i, row := range table.rows {
		item := vault.CipherView{
			Name:     table.get(row, "name"),
			Notes:    table.get(row, "notes"),
			Favorite: table.get(row, "favorite") == "1",
			FolderID: folders.ref(table.get(row, "folder")),
			Type:     csvItemType(table.get(row, "type")),
		}

		for _, field := range strings.Split(table.get(row, "fields"), "\n") {
			if field == "" {
				continue
			}
			name, value, _ := strings.Cut(field, ": ")
			item.Fields = append(item.Fields, vault.FieldView{Name: name, Value: value})
		}

		switch item.Type {
		case vault.TypeLogin:
			login := &vault.LoginView{
				Username: table.get(row, "login_username"),
				Password: table.get(row, "login_password"),
				TOTP:     table.get(row, "login_totp"),
			}
			for _, uri := range strings.Split(table.get(row, "login_uri"), "\n") {
				if uri != "" {
					login.URIs = append(login.URIs, vault.LoginURIView{URI: uri})
				}
			}
			item.Login = login
		case vault.TypeSecureNote:
			item.SecureNote = &vault.SecureNoteView{}
		case vault.TypeCard:
			item.Card = &vault.CardView{
				CardholderName: table.get(row, "card_cardholdername"),
				Brand:          table.get(row, "card_brand"),
				Number:         table.get(row, "card_number"),
				ExpMonth:       table.get(row, "card_expmonth"),
				ExpYear:        table.get(row, "card_expyear"),
				Code:           table.get(row, "card_code"),
			}
		case vault.TypeIdentity:
			item.Identity = &vault.IdentityView{
				Title:          table.get(row, "identity_title"),
				FirstName:      table.get(row, "identity_firstname"),
				MiddleName:     table.get(row, "identity_middlename"),
				LastName:       table.get(row, "identity_lastname"),
				Address1:       table.get(row, "identity_address1"),
				Address2:       table.get(row, "identity_address2"),
				Address3:       table.get(row, "identity_address3"),
				City:           table.get(row, "identity_city"),
				State:          table.get(row, "identity_state"),
				PostalCode:     table.get(row, "identity_postalcode"),
				Country:        table.get(row, "identity_country"),
				Email:          table.get(row, "identity_email"),
				Phone:          table.get(row, "identity_phone"),
				SSN:            table.get(row, "identity_ssn"),
				Username:       table.get(row, "identity_username"),
				PassportNumber: table.get(row, "identity_passportnumber"),
				LicenseNumber:  table.get(row, "identity_licensenumber"),
			}
		}

		out.Items = append(out.Items, item)
		out.Lines = append(out.Lines, table.lines[i])
	}

	out.Folders = folders.list()
	return out, nil
}

func csvItemType(name string) vault.ItemType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "note", "securenote", "secure note":
		return vault.TypeSecureNote
	case "card":
		return vault.TypeCard
	case "identity":
		return vault.TypeIdentity
	default:
		return vault.TypeLogin
	}
}

// folderSet deduplicates folder names while preserving first-seen order.
// Items reference folders by name until write time assigns IDs.
type folderSet struct {
	names []string
	seen  map[string]bool
}

func newFolderSet() *folderSet {
	return &folderSet{seen: make(map[string]bool)}
}

// ref records a folder name and returns the item's folder reference.
func (s *folderSet) ref(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if !s.seen[name] {
		s.seen[name] = true
		s.names = append(s.names, name)
	}
	return name
}

func (s *folderSet) list() []vault.FolderView {
	folders := make([]vault.FolderView, 0, len(s.names))
	for _, name := range s.names {
		folders = append(folders, vault.FolderView{Name: name})
	}
	return folders
}
