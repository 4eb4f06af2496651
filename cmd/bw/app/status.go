package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dasien/bwcli/pkg/auth"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the vault session state",
		Long:  `Report the server, account, and whether the vault is unauthenticated, locked, or unlocked. Output is JSON.`,
		RunE:  statusCmdFunc,
	}
}

func statusCmdFunc(_ *cobra.Command, _ []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	status, err := app.auth.Status(app.sessionKeyPresent)
	if err != nil {
		return err
	}

	out := struct {
		*auth.Status
		TokenExpiresAt string `json:"tokenExpiresAt,omitempty"`
	}{Status: status}

	if status.Status == auth.StatusUnlocked {
		if exp, err := app.auth.TokenExpiry(); err == nil {
			out.TokenExpiresAt = time.Unix(exp, 0).UTC().Format(time.RFC3339)
		}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
