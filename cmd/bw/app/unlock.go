package app

import (
	"github.com/spf13/cobra"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/session"
)

func newUnlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the vault with your master password",
		Long: `Re-derive the master key from your master password and issue a
fresh session key. The vault must have been logged in before.`,
		RunE: unlockCmdFunc,
	}

	cmd.Flags().Bool("save-session", false, "Also store the session key in the OS keyring")

	return cmd
}

func unlockCmdFunc(cmd *cobra.Command, _ []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	password, err := promptHidden("? Master password: [hidden] ")
	if err != nil {
		return err
	}
	defer password.Zero()

	result, err := app.auth.Unlock(cmd.Context(), password)
	if err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetBool("save-session"); save {
		key, err := crypto.SymmetricKeyFromBase64(result.SessionKey)
		if err == nil {
			if err := session.SaveToKeyring(key); err != nil {
				return err
			}
		}
	}
	printSessionExport(result.SessionKey)
	return nil
}
