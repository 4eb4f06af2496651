// Package vault defines the decrypted item model shared by the import and
// export pipelines. All string fields are pre-encryption plaintext.
package vault

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp is a time that serializes as ISO-8601 with millisecond
// precision, the format the export files use.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps a time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON formats with exactly three fractional digits in UTC.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format("2006-01-02T15:04:05.000Z") + `"`), nil
}

// UnmarshalJSON accepts any RFC 3339 form.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// ItemType identifies the payload a cipher item carries.
type ItemType int

// Item types, numbered as the service numbers them.
const (
	TypeLogin      ItemType = 1
	TypeSecureNote ItemType = 2
	TypeCard       ItemType = 3
	TypeIdentity   ItemType = 4
)

// FieldType identifies a custom field's rendering.
type FieldType int

// Custom field types.
const (
	FieldText    FieldType = 0
	FieldHidden  FieldType = 1
	FieldBoolean FieldType = 2
)

// URIMatchType controls how a login URI is matched against a site.
type URIMatchType int

// FolderView is a decrypted folder.
type FolderView struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// LoginURIView is a single login URI with its match rule.
type LoginURIView struct {
	URI   string        `json:"uri"`
	Match *URIMatchType `json:"match,omitempty"`
}

// LoginView is the payload of a login item.
type LoginView struct {
	URIs     []LoginURIView `json:"uris,omitempty"`
	Username string         `json:"username,omitempty"`
	Password string         `json:"password,omitempty"`
	TOTP     string         `json:"totp,omitempty"`
}

// SecureNoteView is the payload of a secure note. The only note type is 0.
type SecureNoteView struct {
	Type int `json:"type"`
}

// CardView is the payload of a card item.
type CardView struct {
	CardholderName string `json:"cardholderName,omitempty"`
	Brand          string `json:"brand,omitempty"`
	Number         string `json:"number,omitempty"`
	ExpMonth       string `json:"expMonth,omitempty"`
	ExpYear        string `json:"expYear,omitempty"`
	Code           string `json:"code,omitempty"`
}

// IdentityView is the payload of an identity item.
type IdentityView struct {
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

// FieldView is a custom field on any item type.
type FieldView struct {
	Name  string    `json:"name"`
	Value string    `json:"value,omitempty"`
	Type  FieldType `json:"type"`
}

// CipherView is a decrypted vault item. Exactly one of the per-type
// payloads is set, matching Type.
type CipherView struct {
	ID           string          `json:"id,omitempty"`
	FolderID     string          `json:"folderId,omitempty"`
	Type         ItemType        `json:"type"`
	Name         string          `json:"name"`
	Notes        string          `json:"notes,omitempty"`
	Favorite     bool            `json:"favorite"`
	Fields       []FieldView     `json:"fields,omitempty"`
	Login        *LoginView      `json:"login,omitempty"`
	SecureNote   *SecureNoteView `json:"secureNote,omitempty"`
	Card         *CardView       `json:"card,omitempty"`
	Identity     *IdentityView   `json:"identity,omitempty"`
	Reprompt     int             `json:"reprompt"`
	CreationDate Timestamp       `json:"creationDate"`
	RevisionDate Timestamp       `json:"revisionDate"`
}

// ExportData is the item set handed to an export formatter.
type ExportData struct {
	Folders []FolderView
	Items   []CipherView
}

// ImportData is the item set produced by an import parser. Folder
// references in Items point at Folders by name until IDs are assigned at
// write time.
type ImportData struct {
	Folders []FolderView
	Items   []CipherView
	// Lines holds the 1-based source position of each item for parsers that
	// track positions (CSV parsers record the CSV record number); empty when
	// the source has no line structure.
	Lines []int
}
