package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/vault"
)

// csvHeader is the universal column set. Every data row emits exactly
// these 34 fields in this order regardless of item type, so a mixed vault
// produces one consistent shape. The order is normative.
var csvHeader = []string{
	"folder",
	"favorite",
	"type",
	"name",
	"notes",
	"fields",
	"reprompt",
	"login_uri",
	"login_username",
	"login_password",
	"login_totp",
	"card_cardholderName",
	"card_brand",
	"card_number",
	"card_expMonth",
	"card_expYear",
	"card_code",
	"identity_title",
	"identity_firstName",
	"identity_middleName",
	"identity_lastName",
	"identity_address1",
	"identity_address2",
	"identity_address3",
	"identity_city",
	"identity_state",
	"identity_postalCode",
	"identity_country",
	"identity_email",
	"identity_phone",
	"identity_ssn",
	"identity_username",
	"identity_passportNumber",
	"identity_licenseNumber",
}

type csvFormatter struct{}

func (*csvFormatter) Format(data *vault.ExportData, _ Options) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, errors.NewExportFileWriteError("writing csv header", err)
	}

	folders := folderNames(data)
	for i := range data.Items {
		if err := w.Write(csvRow(&data.Items[i], folders)); err != nil {
			return nil, errors.NewExportFileWriteError("writing csv row", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.NewExportFileWriteError("flushing csv output", err)
	}
	return buf.Bytes(), nil
}

func csvRow(item *vault.CipherView, folders map[string]string) []string {
	row := make([]string, len(csvHeader))

	row[0] = folders[item.FolderID]
	if item.Favorite {
		row[1] = "1"
	}
	row[2] = csvTypeName(item.Type)
	row[3] = item.Name
	row[4] = item.Notes
	row[5] = joinFields(item.Fields)
	if item.Reprompt != 0 {
		row[6] = fmt.Sprintf("%d", item.Reprompt)
	}

	if item.Login != nil {
		uris := make([]string, 0, len(item.Login.URIs))
		for _, u := range item.Login.URIs {
			uris = append(uris, u.URI)
		}
		// Multiple URIs share one quoted cell, newline separated.
		row[7] = strings.Join(uris, "\n")
		row[8] = item.Login.Username
		row[9] = item.Login.Password
		row[10] = item.Login.TOTP
	}

	if item.Card != nil {
		row[11] = item.Card.CardholderName
		row[12] = item.Card.Brand
		row[13] = item.Card.Number
		row[14] = item.Card.ExpMonth
		row[15] = item.Card.ExpYear
		row[16] = item.Card.Code
	}

	if item.Identity != nil {
		row[17] = item.Identity.Title
		row[18] = item.Identity.FirstName
		row[19] = item.Identity.MiddleName
		row[20] = item.Identity.LastName
		row[21] = item.Identity.Address1
		row[22] = item.Identity.Address2
		row[23] = item.Identity.Address3
		row[24] = item.Identity.City
		row[25] = item.Identity.State
		row[26] = item.Identity.PostalCode
		row[27] = item.Identity.Country
		row[28] = item.Identity.Email
		row[29] = item.Identity.Phone
		row[30] = item.Identity.SSN
		row[31] = item.Identity.Username
		row[32] = item.Identity.PassportNumber
		row[33] = item.Identity.LicenseNumber
	}

	return row
}

func csvTypeName(t vault.ItemType) string {
	switch t {
	case vault.TypeLogin:
		return "login"
	case vault.TypeSecureNote:
		return "note"
	case vault.TypeCard:
		return "card"
	case vault.TypeIdentity:
		return "identity"
	default:
		return ""
	}
}

func joinFields(fields []vault.FieldView) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Value))
	}
	return strings.Join(parts, "\n")
}
