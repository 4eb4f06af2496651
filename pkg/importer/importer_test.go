package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/exporter"
	"github.com/dasien/bwcli/pkg/importer/mocks"
	"github.com/dasien/bwcli/pkg/vault"
)

func TestImportUnknownFormat(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	writer := mocks.NewMockVaultWriter(ctrl)

	_, err := Import(context.Background(), writer, "keepass", []byte("x"), Options{})
	assert.True(t, errors.IsType(err, errors.ErrImportUnsupportedFormat))
}

func TestImportFileTooLarge(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	writer := mocks.NewMockVaultWriter(ctrl)

	_, err := Import(context.Background(), writer, FormatChrome, make([]byte, MaxFileSize+1), Options{})
	assert.True(t, errors.IsType(err, errors.ErrImportFileTooLarge))
}

// A validation failure reports every error and never touches the writer.
func TestImportValidationIsAllOrNothing(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	writer := mocks.NewMockVaultWriter(ctrl)
	// No WriteItems expectation: any call fails the test.

	input := strings.Join([]string{
		"name,url,username,password",
		"GitHub,https://github.com,octocat,hunter2",
		",https://example.com,user,pw", // missing name
		"Empty,https://nothing.example,,", // login with no credentials
	}, "\n")

	_, err := Import(context.Background(), writer, FormatChrome, []byte(input), Options{})
	require.True(t, errors.IsType(err, errors.ErrImportValidation), "expected validation error, got %v", err)

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	require.Len(t, typed.ValidationErrors, 2)
	assert.Equal(t, 3, typed.ValidationErrors[0].Line)
	assert.Equal(t, "name", typed.ValidationErrors[0].Field)
	assert.Equal(t, "Name is required", typed.ValidationErrors[0].Message)
	assert.Equal(t, 4, typed.ValidationErrors[1].Line)
	assert.Equal(t, "login", typed.ValidationErrors[1].Field)
}

func TestImportWritesValidItems(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	writer := mocks.NewMockVaultWriter(ctrl)
	writer.EXPECT().
		WriteItems(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, folders []vault.FolderView, items []vault.CipherView) (int, error) {
			assert.Empty(t, folders)
			assert.Len(t, items, 1)
			return len(items), nil
		})

	input := "name,url,username,password\nGitHub,https://github.com,octocat,hunter2\n"
	result, err := Import(context.Background(), writer, FormatChrome, []byte(input), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsCreated)
}

func TestImportEmptyFileSucceedsWithZeroItems(t *testing.T) {
	t.Parallel()

	for _, format := range []string{FormatChrome, FormatBitwardenCSV, FormatBitwardenJSON, FormatLastPass, FormatOnePassword} {
		ctrl := gomock.NewController(t)
		writer := mocks.NewMockVaultWriter(ctrl)
		writer.EXPECT().WriteItems(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil)

		result, err := Import(context.Background(), writer, format, nil, Options{})
		require.NoError(t, err, "format %s", format)
		assert.Zero(t, result.ItemsCreated)
	}
}

func TestChromeParser(t *testing.T) {
	t.Parallel()

	input := "name,url,username,password\nexample.com,https://example.com/login,user,pw\n"
	parsed, err := (&chromeParser{}).Parse([]byte(input), Options{})
	require.NoError(t, err)

	require.Len(t, parsed.Items, 1)
	item := parsed.Items[0]
	assert.Equal(t, vault.TypeLogin, item.Type)
	assert.Equal(t, "example.com", item.Name)
	assert.Equal(t, "user", item.Login.Username)
	assert.Equal(t, "pw", item.Login.Password)
	require.Len(t, item.Login.URIs, 1)
	assert.Equal(t, "https://example.com/login", item.Login.URIs[0].URI)
	assert.Empty(t, parsed.Folders)
}

func TestChromeParserToleratesBOM(t *testing.T) {
	t.Parallel()

	input := "\xEF\xBB\xBFname,url,username,password\nexample.com,https://example.com,user,pw\n"
	parsed, err := (&chromeParser{}).Parse([]byte(input), Options{})
	require.NoError(t, err)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "example.com", parsed.Items[0].Name)
}

func TestLastPassParser(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"url,username,password,totp,extra,name,grouping,fav",
		"https://github.com,octocat,hunter2,,some notes,GitHub,Work,1",
		"http://sn,,,,note body,My Note,(none),0",
	}, "\n")

	parsed, err := (&lastPassParser{}).Parse([]byte(input), Options{})
	require.NoError(t, err)
	require.Len(t, parsed.Items, 2)

	login := parsed.Items[0]
	assert.Equal(t, vault.TypeLogin, login.Type)
	assert.Equal(t, "GitHub", login.Name)
	assert.Equal(t, "Work", login.FolderID)
	assert.True(t, login.Favorite)
	assert.Equal(t, "some notes", login.Notes)

	note := parsed.Items[1]
	assert.Equal(t, vault.TypeSecureNote, note.Type)
	assert.Equal(t, "My Note", note.Name)
	assert.Equal(t, "note body", note.Notes)
	assert.Empty(t, note.FolderID)
	assert.Nil(t, note.Login)

	require.Len(t, parsed.Folders, 1)
	assert.Equal(t, "Work", parsed.Folders[0].Name)
}

func TestOnePasswordParser(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"title,type,url,username,password,notes",
		"GitHub,Login,https://github.com,octocat,hunter2,",
		"Recipe,Secure Note,,,,the recipe",
		"Mystery,,https://mystery.example,user,pw,",
	}, "\n")

	parsed, err := (&onePasswordParser{}).Parse([]byte(input), Options{})
	require.NoError(t, err)
	require.Len(t, parsed.Items, 3)

	assert.Equal(t, vault.TypeLogin, parsed.Items[0].Type)
	assert.Equal(t, vault.TypeSecureNote, parsed.Items[1].Type)
	// No type column value defaults to login.
	assert.Equal(t, vault.TypeLogin, parsed.Items[2].Type)
}

func TestBitwardenCSVParser(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"folder,favorite,type,name,notes,fields,reprompt,login_uri,login_username,login_password,login_totp",
		`Work,1,login,GitHub,,pin: 1234,0,"https://github.com/login` + "\n" + `https://github.com",octocat,hunter2,JBSWY3DPEHPK3PXP`,
		",,note,Wifi,the wifi password,,,,,,",
	}, "\n")

	parsed, err := (&bitwardenCSVParser{}).Parse([]byte(input), Options{})
	require.NoError(t, err)
	require.Len(t, parsed.Items, 2)

	login := parsed.Items[0]
	assert.Equal(t, vault.TypeLogin, login.Type)
	assert.Equal(t, "Work", login.FolderID)
	assert.True(t, login.Favorite)
	require.Len(t, login.Login.URIs, 2)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", login.Login.TOTP)
	require.Len(t, login.Fields, 1)
	assert.Equal(t, "pin", login.Fields[0].Name)
	assert.Equal(t, "1234", login.Fields[0].Value)

	note := parsed.Items[1]
	assert.Equal(t, vault.TypeSecureNote, note.Type)
	assert.NotNil(t, note.SecureNote)
}

// JSON export then bitwardenjson import reproduces the item set
// field-for-field.
func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	data := roundTripVault()
	out, err := exporter.Export(exporter.FormatJSON, data, exporter.Options{})
	require.NoError(t, err)

	parsed, err := (&bitwardenJSONParser{}).Parse(out, Options{})
	require.NoError(t, err)

	assert.Equal(t, data.Folders, parsed.Folders)
	assert.Equal(t, data.Items, parsed.Items)
}

// Encrypted export then encrypted_json import also round trips.
func TestEncryptedJSONRoundTrip(t *testing.T) {
	t.Parallel()

	data := roundTripVault()
	password := crypto.NewSecret("export-pass")

	out, err := exporter.Export(exporter.FormatEncryptedJSON, data, exporter.Options{
		Password: password,
		Salt:     "user@example.com",
	})
	require.NoError(t, err)

	parsed, err := (&encryptedJSONParser{}).Parse(out, Options{Password: password})
	require.NoError(t, err)
	assert.Equal(t, data.Items, parsed.Items)

	t.Run("wrong password is invalid password", func(t *testing.T) {
		_, err := (&encryptedJSONParser{}).Parse(out, Options{Password: crypto.NewSecret("wrong")})
		assert.True(t, errors.IsInvalidPassword(err), "expected invalid password, got %v", err)
	})

	t.Run("missing password is a parse error", func(t *testing.T) {
		_, err := (&encryptedJSONParser{}).Parse(out, Options{})
		assert.True(t, errors.IsType(err, errors.ErrImportParse), "expected parse error, got %v", err)
	})
}

func TestBitwardenJSONRejectsEncryptedFile(t *testing.T) {
	t.Parallel()

	_, err := (&bitwardenJSONParser{}).Parse([]byte(`{"encrypted": true, "data": "2.x|y|z"}`), Options{})
	assert.True(t, errors.IsType(err, errors.ErrImportParse))
}

func TestValidatePayloadAgreement(t *testing.T) {
	t.Parallel()

	data := &vault.ImportData{
		Items: []vault.CipherView{
			{
				Type:       vault.TypeLogin,
				Name:       "confused",
				Login:      &vault.LoginView{Username: "u"},
				SecureNote: &vault.SecureNoteView{},
			},
		},
	}

	err := Validate(data)
	require.True(t, errors.IsType(err, errors.ErrImportValidation))

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	require.Len(t, typed.ValidationErrors, 1)
	assert.Equal(t, "type", typed.ValidationErrors[0].Field)
}

func TestValidateCardNumberRequired(t *testing.T) {
	t.Parallel()

	err := Validate(&vault.ImportData{
		Items: []vault.CipherView{
			{Type: vault.TypeCard, Name: "empty card", Card: &vault.CardView{Brand: "Visa"}},
		},
	})
	require.True(t, errors.IsType(err, errors.ErrImportValidation))
}

func TestFormats(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]string{"1password", "bitwardencsv", "bitwardenjson", "chrome", "encrypted_json", "lastpass"},
		Formats())
}

func roundTripVault() *vault.ExportData {
	ts := vault.NewTimestamp(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	return &vault.ExportData{
		Folders: []vault.FolderView{{ID: "f1", Name: "Work"}},
		Items: []vault.CipherView{
			{
				Type: vault.TypeLogin, Name: "GitHub", FolderID: "f1",
				Login: &vault.LoginView{
					Username: "octocat", Password: "hunter2", TOTP: "JBSWY3DPEHPK3PXP",
					URIs: []vault.LoginURIView{{URI: "https://github.com"}},
				},
				CreationDate: ts, RevisionDate: ts,
			},
			{
				Type: vault.TypeSecureNote, Name: "Wifi", Notes: "the wifi password",
				SecureNote: &vault.SecureNoteView{}, CreationDate: ts, RevisionDate: ts,
			},
			{
				Type: vault.TypeCard, Name: "Visa",
				Card: &vault.CardView{Number: "4111111111111111", Code: "123"}, CreationDate: ts, RevisionDate: ts,
			},
			{
				Type: vault.TypeIdentity, Name: "Me",
				Identity: &vault.IdentityView{FirstName: "Jane", LastName: "Doe"}, CreationDate: ts, RevisionDate: ts,
			},
		},
	}
}
