package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dasien/bwcli/pkg/session"
)

func newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Lock the vault",
		Long: `Drop the active session key. The encrypted vault material stays
on disk; use unlock to regain access.`,
		RunE: lockCmdFunc,
	}
}

func lockCmdFunc(_ *cobra.Command, _ []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.auth.Lock(); err != nil {
		return err
	}

	fmt.Println("Your vault is locked.")
	fmt.Printf("Unset the session variable to finish: unset %s\n", session.EnvVar)
	return nil
}
