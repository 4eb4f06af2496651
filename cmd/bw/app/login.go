package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dasien/bwcli/pkg/auth"
	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/session"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Log in to your vault",
		Long: `Log in with your master password, or with an API key using
--apikey. A successful login prints a fresh session key to export as
BW_SESSION.`,
		Args: cobra.MaximumNArgs(1),
		RunE: loginCmdFunc,
	}

	cmd.Flags().Bool("apikey", false, "Log in with an API key (client credentials)")
	cmd.Flags().String("method", "", "Two-step login provider id")
	cmd.Flags().String("code", "", "Two-step login code")
	cmd.Flags().Bool("remember", false, "Remember this device for two-step login")
	cmd.Flags().Bool("save-session", false, "Also store the session key in the OS keyring")

	return cmd
}

func loginCmdFunc(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()

	apikey, _ := cmd.Flags().GetBool("apikey")
	if apikey {
		return loginWithAPIKey(cmd, app)
	}

	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		fmt.Print("? Email address: ")
		if _, err := fmt.Scanln(&email); err != nil {
			return errors.NewConfigurationError("an email address is required", err)
		}
	}

	password, err := promptHidden("? Master password: [hidden] ")
	if err != nil {
		return err
	}
	defer password.Zero()

	twoFactor, err := twoFactorFromFlags(cmd)
	if err != nil {
		return err
	}

	result, err := app.auth.LoginWithPassword(ctx, email, password, twoFactor)
	if err != nil {
		if errors.IsTwoFactorRequired(err) {
			printTwoFactorProviders(err)
		}
		return err
	}

	return finishLogin(cmd, result)
}

func loginWithAPIKey(cmd *cobra.Command, app *appContext) error {
	var clientID string
	fmt.Print("? client_id: ")
	if _, err := fmt.Scanln(&clientID); err != nil {
		return errors.NewConfigurationError("a client_id is required", err)
	}

	clientSecret, err := promptHidden("? client_secret: [hidden] ")
	if err != nil {
		return err
	}
	defer clientSecret.Zero()

	result, err := app.auth.LoginWithAPIKey(cmd.Context(), clientID, clientSecret)
	if err != nil {
		return err
	}
	fmt.Println("You are logged in!")
	fmt.Println("To unlock your vault, use the `unlock` command.")
	return finishLogin(cmd, result)
}

func twoFactorFromFlags(cmd *cobra.Command) (*auth.TwoFactorSubmission, error) {
	code, _ := cmd.Flags().GetString("code")
	if code == "" {
		return nil, nil
	}
	method, _ := cmd.Flags().GetString("method")
	provider := int(auth.TwoFactorAuthenticator)
	if method != "" {
		parsed, err := strconv.Atoi(method)
		if err != nil {
			return nil, errors.NewConfigurationError("two-step method must be a provider id", err)
		}
		provider = parsed
	}
	remember, _ := cmd.Flags().GetBool("remember")
	return &auth.TwoFactorSubmission{
		Provider: auth.TwoFactorProvider(provider),
		Token:    code,
		Remember: remember,
	}, nil
}

func printTwoFactorProviders(err error) {
	var typed *errors.Error
	if !errorsAsTyped(err, &typed) {
		return
	}
	fmt.Println("Two-step login is enabled on this account. Available providers:")
	for _, p := range typed.Providers {
		fmt.Printf("  %d) %s\n", p, twoFactorProviderName(auth.TwoFactorProvider(p)))
	}
	fmt.Println("Retry with --method <id> --code <code>.")
}

func twoFactorProviderName(p auth.TwoFactorProvider) string {
	switch p {
	case auth.TwoFactorAuthenticator:
		return "Authenticator app"
	case auth.TwoFactorEmail:
		return "Email"
	case auth.TwoFactorDuo:
		return "Duo"
	case auth.TwoFactorYubiKey:
		return "YubiKey"
	case auth.TwoFactorWebAuthn:
		return "WebAuthn"
	default:
		return "Unsupported provider"
	}
}

func finishLogin(cmd *cobra.Command, result *auth.LoginResult) error {
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
