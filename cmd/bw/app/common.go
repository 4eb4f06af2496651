package app

import (
	goerrors "errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dasien/bwcli/pkg/auth"
	"github.com/dasien/bwcli/pkg/client"
	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/environment"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/session"
	"github.com/dasien/bwcli/pkg/state"
)

// Exit codes the CLI maps typed errors onto.
const (
	exitGeneral        = 1
	exitAuthentication = 2
	exitNotFound       = 3
	exitValidation     = 4
)

// appContext holds the wired collaborators a command needs.
type appContext struct {
	env    *environment.Environment
	store  *state.Store
	client *client.Client
	tokens *auth.TokenManager
	auth   *auth.Authenticator

	sessionKeyPresent bool
}

// newAppContext resolves the environment and session key, opens the state
// store, and wires the client, token manager, and authenticator together.
func newAppContext() (*appContext, error) {
	env, err := resolveEnvironment()
	if err != nil {
		return nil, err
	}

	sessionKey, err := session.FromEnvironment()
	if err != nil {
		return nil, err
	}

	path, err := state.DefaultPath()
	if err != nil {
		return nil, err
	}
	store, err := state.Open(path, sessionKey)
	if err != nil {
		return nil, err
	}

	c := client.New(client.NewHTTPClientBuilder().Build(), env, nil)
	tokens := auth.NewTokenManager(store, auth.NewRefreshFunc(c))
	c.SetTokenSource(tokens)

	return &appContext{
		env:               env,
		store:             store,
		client:            c,
		tokens:            tokens,
		auth:              auth.NewAuthenticator(c, store, tokens, env),
		sessionKeyPresent: sessionKey != nil,
	}, nil
}

// Close releases the state store's file lock.
func (a *appContext) Close() {
	_ = a.store.Close()
}

func resolveEnvironment() (*environment.Environment, error) {
	if server := viper.GetString("server"); server != "" {
		return environment.FromBaseURL(server)
	}
	return environment.DefaultCloud(), nil
}

// promptHidden reads a secret from the terminal without echo.
func promptHidden(prompt string) (*crypto.Secret, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, errors.NewConfigurationError("reading from terminal", err)
	}
	return crypto.NewSecretBytes(raw), nil
}

// printSessionExport tells the user how to activate the new session key.
func printSessionExport(sessionKey string) {
	fmt.Printf("To unlock your vault, set your session key to an environment variable:\n\n")
	fmt.Printf("$ export %s=%q\n", session.EnvVar, sessionKey)
}

// ExitCode maps a typed error onto the process exit code.
func ExitCode(err error) int {
	var typed *errors.Error
	if !goerrors.As(err, &typed) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitGeneral
	}

	fmt.Fprintf(os.Stderr, "error: %s\n", typed.Message)
	if typed.Hint != "" {
		fmt.Fprintf(os.Stderr, "hint: %s\n", typed.Hint)
	}
	for _, v := range typed.ValidationErrors {
		fmt.Fprintf(os.Stderr, "  %s\n", v)
	}

	switch typed.Type {
	case errors.ErrAuthentication, errors.ErrInvalidPassword, errors.ErrStorageLocked, errors.ErrTwoFactorRequired:
		return exitAuthentication
	case errors.ErrNotFound:
		return exitNotFound
	case errors.ErrImportValidation:
		return exitValidation
	default:
		return exitGeneral
	}
}

// errorsAsTyped extracts the typed error, if any.
func errorsAsTyped(err error, target **errors.Error) bool {
	return goerrors.As(err, target)
}
