package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dasien/bwcli/pkg/auth"
	"github.com/dasien/bwcli/pkg/client"
	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/crypto/kdf"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/exporter"
	"github.com/dasien/bwcli/pkg/vault"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export your vault",
		Long: `Export the decrypted vault to a file. Your master password is
required to confirm the export. Supported formats: csv, json,
encrypted_json.`,
		RunE: exportCmdFunc,
	}

	cmd.Flags().String("format", exporter.FormatCSV, "Export format")
	cmd.Flags().String("output", "", "Output file (default: stdout)")
	cmd.Flags().String("password", "", "Password protecting an encrypted_json export")

	return cmd
}

func exportCmdFunc(cmd *cobra.Command, _ []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()

	masterPassword, err := promptHidden("? Master password: [hidden] ")
	if err != nil {
		return err
	}
	defer masterPassword.Zero()

	data, profile, err := fetchDecryptedVault(ctx, app, masterPassword)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	opts := exporter.Options{Salt: profile.Email}
	if filePassword, _ := cmd.Flags().GetString("password"); filePassword != "" {
		opts.Password = crypto.NewSecret(filePassword)
	}

	out, err := exporter.Export(format, data, opts)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(output, out, 0600); err != nil {
		return errors.NewExportFileWriteError(fmt.Sprintf("writing %s", output), err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d items to %s\n", len(data.Items), output)
	return nil
}

// fetchDecryptedVault verifies the master password, recovers the user key,
// and pulls and decrypts the vault contents.
func fetchDecryptedVault(ctx context.Context, app *appContext, masterPassword *crypto.Secret) (*vault.ExportData, *auth.UserProfile, error) {
	userKey, profile, err := recoverUserKey(ctx, app, masterPassword)
	if err != nil {
		return nil, nil, err
	}
	defer userKey.Zero()

	sync, err := client.GetWithAuth[vault.SyncResponse](ctx, app.client, "/sync")
	if err != nil {
		return nil, nil, err
	}

	data, err := vault.DecryptSync(&sync, userKey)
	if err != nil {
		return nil, nil, err
	}
	return data, profile, nil
}

// recoverUserKey re-derives the master key from the password and unwraps
// the stored user key.
func recoverUserKey(ctx context.Context, app *appContext, masterPassword *crypto.Secret) (*crypto.SymmetricKey, *auth.UserProfile, error) {
	var profile auth.UserProfile
	found, err := app.store.Get("userProfile", &profile)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, errors.NewAuthenticationError("you are not logged in", nil)
	}

	var cfg kdf.Config
	if _, err := app.store.Get("kdfConfig", &cfg); err != nil {
		return nil, nil, err
	}

	wrapped, err := app.store.GetSecure("userKey")
	if err != nil {
		return nil, nil, err
	}
	if wrapped.IsEmpty() {
		return nil, nil, errors.NewAuthenticationError("no user key is stored; log in again", nil)
	}

	masterKey, err := kdf.DeriveMasterKey(ctx, masterPassword, profile.Email, cfg)
	if err != nil {
		return nil, nil, err
	}
	defer masterKey.Zero()

	encUserKey, err := crypto.ParseEncString(wrapped.Expose())
	if err != nil {
		return nil, nil, err
	}
	userKey, err := kdf.DecryptUserKey(encUserKey, masterKey)
	if err != nil {
		return nil, nil, err
	}
	return userKey, &profile, nil
}
