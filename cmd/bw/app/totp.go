package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dasien/bwcli/pkg/totp"
)

func newTotpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totp <secret>",
		Short: "Generate a time-based one-time password",
		Long:  `Generate the current TOTP code for a base32 secret or an otpauth:// URL.`,
		Args:  cobra.ExactArgs(1),
		RunE:  totpCmdFunc,
	}
}

func totpCmdFunc(_ *cobra.Command, args []string) error {
	code, err := totp.Generate(args[0], time.Now())
	if err != nil {
		return err
	}
	fmt.Println(code.Code)
	return nil
}
