package vault

import (
	"github.com/dasien/bwcli/pkg/crypto"
)

// Cipher is the wire form of a vault item: every string value is an
// EncString under the user key; structure and type are plaintext.
type Cipher struct {
	ID           string          `json:"id,omitempty"`
	FolderID     string          `json:"folderId,omitempty"`
	Type         ItemType        `json:"type"`
	Name         string          `json:"name"`
	Notes        string          `json:"notes,omitempty"`
	Favorite     bool            `json:"favorite"`
	Fields       []CipherField   `json:"fields,omitempty"`
	Login        *CipherLogin    `json:"login,omitempty"`
	SecureNote   *SecureNoteView `json:"secureNote,omitempty"`
	Card         *CipherCard     `json:"card,omitempty"`
	Identity     *CipherIdentity `json:"identity,omitempty"`
	Reprompt     int             `json:"reprompt"`
	CreationDate Timestamp       `json:"creationDate"`
	RevisionDate Timestamp       `json:"revisionDate"`
}

// CipherLogin is the encrypted login payload.
type CipherLogin struct {
	URIs     []CipherLoginURI `json:"uris,omitempty"`
	Username string           `json:"username,omitempty"`
	Password string           `json:"password,omitempty"`
	TOTP     string           `json:"totp,omitempty"`
}

// CipherLoginURI is a single encrypted login URI.
type CipherLoginURI struct {
	URI   string        `json:"uri"`
	Match *URIMatchType `json:"match,omitempty"`
}

// CipherCard is the encrypted card payload.
type CipherCard struct {
	CardholderName string `json:"cardholderName,omitempty"`
	Brand          string `json:"brand,omitempty"`
	Number         string `json:"number,omitempty"`
	ExpMonth       string `json:"expMonth,omitempty"`
	ExpYear        string `json:"expYear,omitempty"`
	Code           string `json:"code,omitempty"`
}

// CipherIdentity is the encrypted identity payload.
type CipherIdentity struct {
	Title          string `json:"title,omitempty"`
	FirstName      string `json:"firstName,omitempty"`
	MiddleName     string `json:"middleName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	Address1       string `json:"address1,omitempty"`
	Address2       string `json:"address2,omitempty"`
	Address3       string `json:"address3,omitempty"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
	PostalCode     string `json:"postalCode,omitempty"`
	Country        string `json:"country,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	SSN            string `json:"ssn,omitempty"`
	Username       string `json:"username,omitempty"`
	PassportNumber string `json:"passportNumber,omitempty"`
	LicenseNumber  string `json:"licenseNumber,omitempty"`
}

// CipherField is an encrypted custom field.
type CipherField struct {
	Name  string    `json:"name"`
	Value string    `json:"value,omitempty"`
	Type  FieldType `json:"type"`
}

// Folder is the wire form of a folder; the name is an EncString.
type Folder struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// SyncResponse is the portion of the sync payload the export pipeline
// consumes.
type SyncResponse struct {
	Folders []Folder `json:"folders"`
	Ciphers []Cipher `json:"ciphers"`
}

// DecryptSync decrypts a sync payload into the export model.
func DecryptSync(resp *SyncResponse, userKey *crypto.SymmetricKey) (*ExportData, error) {
	out := &ExportData{}

	for _, folder := range resp.Folders {
		enc, err := crypto.ParseEncString(folder.Name)
		if err != nil {
			return nil, err
		}
		name, err := enc.Decrypt(userKey)
		if err != nil {
			return nil, err
		}
		out.Folders = append(out.Folders, FolderView{ID: folder.ID, Name: string(name)})
	}

	for i := range resp.Ciphers {
		view, err := DecryptCipher(&resp.Ciphers[i], userKey)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *view)
	}
	return out, nil
}

// EncryptCipher converts a decrypted view into its wire form under the
// user key.
func EncryptCipher(view *CipherView, userKey *crypto.SymmetricKey) (*Cipher, error) {
	enc := func(plaintext string) (string, error) {
		if plaintext == "" {
			return "", nil
		}
		e, err := crypto.Encrypt([]byte(plaintext), userKey)
		if err != nil {
			return "", err
		}
		return e.String(), nil
	}

	cipher := &Cipher{
		ID:           view.ID,
		FolderID:     view.FolderID,
		Type:         view.Type,
		Favorite:     view.Favorite,
		Reprompt:     view.Reprompt,
		CreationDate: view.CreationDate,
		RevisionDate: view.RevisionDate,
		SecureNote:   view.SecureNote,
	}

	var err error
	if cipher.Name, err = enc(view.Name); err != nil {
		return nil, err
	}
	if cipher.Notes, err = enc(view.Notes); err != nil {
		return nil, err
	}

	for _, f := range view.Fields {
		name, err := enc(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := enc(f.Value)
		if err != nil {
			return nil, err
		}
		cipher.Fields = append(cipher.Fields, CipherField{Name: name, Value: value, Type: f.Type})
	}

	if view.Login != nil {
		login := &CipherLogin{}
		if login.Username, err = enc(view.Login.Username); err != nil {
			return nil, err
		}
		if login.Password, err = enc(view.Login.Password); err != nil {
			return nil, err
		}
		if login.TOTP, err = enc(view.Login.TOTP); err != nil {
			return nil, err
		}
		for _, u := range view.Login.URIs {
			uri, err := enc(u.URI)
			if err != nil {
				return nil, err
			}
			login.URIs = append(login.URIs, CipherLoginURI{URI: uri, Match: u.Match})
		}
		cipher.Login = login
	}

	if view.Card != nil {
		card := &CipherCard{}
		fields := []struct {
			src string
			dst *string
		}{
			{view.Card.CardholderName, &card.CardholderName},
			{view.Card.Brand, &card.Brand},
			{view.Card.Number, &card.Number},
			{view.Card.ExpMonth, &card.ExpMonth},
			{view.Card.ExpYear, &card.ExpYear},
			{view.Card.Code, &card.Code},
		}
		for _, f := range fields {
			if *f.dst, err = enc(f.src); err != nil {
				return nil, err
			}
		}
		cipher.Card = card
	}

	if view.Identity != nil {
		identity := &CipherIdentity{}
		fields := []struct {
			src string
			dst *string
		}{
			{view.Identity.Title, &identity.Title},
			{view.Identity.FirstName, &identity.FirstName},
			{view.Identity.MiddleName, &identity.MiddleName},
			{view.Identity.LastName, &identity.LastName},
			{view.Identity.Address1, &identity.Address1},
			{view.Identity.Address2, &identity.Address2},
			{view.Identity.Address3, &identity.Address3},
			{view.Identity.City, &identity.City},
			{view.Identity.State, &identity.State},
			{view.Identity.PostalCode, &identity.PostalCode},
			{view.Identity.Country, &identity.Country},
			{view.Identity.Email, &identity.Email},
			{view.Identity.Phone, &identity.Phone},
			{view.Identity.SSN, &identity.SSN},
			{view.Identity.Username, &identity.Username},
			{view.Identity.PassportNumber, &identity.PassportNumber},
			{view.Identity.LicenseNumber, &identity.LicenseNumber},
		}
		for _, f := range fields {
			if *f.dst, err = enc(f.src); err != nil {
				return nil, err
			}
		}
		cipher.Identity = identity
	}

	return cipher, nil
}

// DecryptCipher converts a wire cipher back into a decrypted view.
func DecryptCipher(cipher *Cipher, userKey *crypto.SymmetricKey) (*CipherView, error) {
	dec := func(encoded string) (string, error) {
		if encoded == "" {
			return "", nil
		}
		e, err := crypto.ParseEncString(encoded)
		if err != nil {
			return "", err
		}
		plaintext, err := e.Decrypt(userKey)
		if err != nil {
			return "", err
		}
		return string(plaintext), nil
	}

	view := &CipherView{
		ID:           cipher.ID,
		FolderID:     cipher.FolderID,
		Type:         cipher.Type,
		Favorite:     cipher.Favorite,
		Reprompt:     cipher.Reprompt,
		CreationDate: cipher.CreationDate,
		RevisionDate: cipher.RevisionDate,
		SecureNote:   cipher.SecureNote,
	}

	var err error
	if view.Name, err = dec(cipher.Name); err != nil {
		return nil, err
	}
	if view.Notes, err = dec(cipher.Notes); err != nil {
		return nil, err
	}

	for _, f := range cipher.Fields {
		name, err := dec(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := dec(f.Value)
		if err != nil {
			return nil, err
		}
		view.Fields = append(view.Fields, FieldView{Name: name, Value: value, Type: f.Type})
	}

	if cipher.Login != nil {
		login := &LoginView{}
		if login.Username, err = dec(cipher.Login.Username); err != nil {
			return nil, err
		}
		if login.Password, err = dec(cipher.Login.Password); err != nil {
			return nil, err
		}
		if login.TOTP, err = dec(cipher.Login.TOTP); err != nil {
			return nil, err
		}
		for _, u := range cipher.Login.URIs {
			uri, err := dec(u.URI)
			if err != nil {
				return nil, err
			}
			login.URIs = append(login.URIs, LoginURIView{URI: uri, Match: u.Match})
		}
		view.Login = login
	}

	if cipher.Card != nil {
		card := &CardView{}
		fields := []struct {
			src string
			dst *string
		}{
			{cipher.Card.CardholderName, &card.CardholderName},
			{cipher.Card.Brand, &card.Brand},
			{cipher.Card.Number, &card.Number},
			{cipher.Card.ExpMonth, &card.ExpMonth},
			{cipher.Card.ExpYear, &card.ExpYear},
			{cipher.Card.Code, &card.Code},
		}
		for _, f := range fields {
			if *f.dst, err = dec(f.src); err != nil {
				return nil, err
			}
		}
		view.Card = card
	}

	if cipher.Identity != nil {
		identity := &IdentityView{}
		fields := []struct {
			src string
			dst *string
		}{
			{cipher.Identity.Title, &identity.Title},
			{cipher.Identity.FirstName, &identity.FirstName},
			{cipher.Identity.MiddleName, &identity.MiddleName},
			{cipher.Identity.LastName, &identity.LastName},
			{cipher.Identity.Address1, &identity.Address1},
			{cipher.Identity.Address2, &identity.Address2},
			{cipher.Identity.Address3, &identity.Address3},
			{cipher.Identity.City, &identity.City},
			{cipher.Identity.State, &identity.State},
			{cipher.Identity.PostalCode, &identity.PostalCode},
			{cipher.Identity.Country, &identity.Country},
			{cipher.Identity.Email, &identity.Email},
			{cipher.Identity.Phone, &identity.Phone},
			{cipher.Identity.SSN, &identity.SSN},
			{cipher.Identity.Username, &identity.Username},
			{cipher.Identity.PassportNumber, &identity.PassportNumber},
			{cipher.Identity.LicenseNumber, &identity.LicenseNumber},
		}
		for _, f := range fields {
			if *f.dst, err = dec(f.src); err != nil {
				return nil, err
			}
		}
		view.Identity = identity
	}

	return view, nil
}
