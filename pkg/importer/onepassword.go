package importer

import (
	"strings"

	"github.com/dasien/bwcli/pkg/vault"
)

// onePasswordParser reads the 1Password CSV export. The Type column picks
// the item type; anything unrecognized imports as a login.
type onePasswordParser struct{}

func (*onePasswordParser) Parse(data []byte, _ Options) (*vault.ImportData, error) {
	table, err := parseCSVTable(data)
	if err != nil {
		return nil, err
	}

	out := &vault.ImportData{}

	for i, row := range table.rows {
		item := vault.CipherView{
			Name:     table.get(row, "title"),
			Notes:    table.get(row, "notes"),
			Favorite: table.get(row, "favorite") == "1" || strings.EqualFold(table.get(row, "favorite"), "true"),
			Type:     onePasswordItemType(table.get(row, "type")),
		}

		switch item.Type {
		case vault.TypeSecureNote:
			item.SecureNote = &vault.SecureNoteView{}
		case vault.TypeCard:
			item.Card = &vault.CardView{
				CardholderName: table.get(row, "cardholder"),
				Number:         table.get(row, "number"),
				Code:           table.get(row, "verification number"),
			}
		case vault.TypeIdentity:
			item.Identity = &vault.IdentityView{
				FirstName: table.get(row, "first name"),
				LastName:  table.get(row, "last name"),
				Email:     table.get(row, "email"),
				Phone:     table.get(row, "phone"),
			}
		default:
			login := &vault.LoginView{
				Username: table.get(row, "username"),
				Password: table.get(row, "password"),
				TOTP:     table.get(row, "otpauth"),
			}
			if uri := table.get(row, "url"); uri != "" {
				login.URIs = append(login.URIs, vault.LoginURIView{URI: uri})
			}
			item.Login = login
		}

		out.Items = append(out.Items, item)
		out.Lines = append(out.Lines, table.lines[i])
	}

	return out, nil
}

func onePasswordItemType(name string) vault.ItemType {
	switch {
	case strings.Contains(strings.ToLower(name), "note"):
		return vault.TypeSecureNote
	case strings.Contains(strings.ToLower(name), "card"):
		return vault.TypeCard
	case strings.Contains(strings.ToLower(name), "identity"):
		return vault.TypeIdentity
	default:
		return vault.TypeLogin
	}
}
