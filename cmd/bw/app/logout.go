package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of your vault",
		Long:  `Remove tokens, the encrypted user key, and the account profile. The device identifier is kept.`,
		RunE:  logoutCmdFunc,
	}
}

func logoutCmdFunc(_ *cobra.Command, _ []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.auth.Logout(); err != nil {
		return err
	}

	fmt.Println("You have logged out.")
	return nil
}
