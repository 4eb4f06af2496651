package importer

import (
	"github.com/dasien/bwcli/pkg/vault"
)

// chromeParser reads the Chrome password export: four columns, every row a
// login, no folders.
type chromeParser struct{}

func (*chromeParser) Parse(data []byte, _ Options) (*vault.ImportData, error) {
	table, err := parseCSVTable(data)
	if err != nil {
		return nil, err
	}

	out := &vault.ImportData{}

	for i, row := range table.rows {
		login := &vault.LoginView{
			Username: table.get(row, "username"),
			Password: table.get(row, "password"),
		}
		if uri := table.get(row, "url"); uri != "" {
			login.URIs = append(login.URIs, vault.LoginURIView{URI: uri})
		}

		out.Items = append(out.Items, vault.CipherView{
			Type:  vault.TypeLogin,
			Name:  table.get(row, "name"),
			Login: login,
		})
		out.Lines = append(out.Lines, table.lines[i])
	}

	return out, nil
}
