package app

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/importer"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [format] [file]",
		Short: "Import vault data from a file",
		Long: `Parse and validate a password-manager export file, then write
its items to your vault. Nothing is written if any item fails validation.
Use --formats to list the supported formats.`,
		Args: cobra.MaximumNArgs(2),
		RunE: importCmdFunc,
	}

	cmd.Flags().Bool("formats", false, "List supported import formats")
	cmd.Flags().String("password", "", "Password for an encrypted_json file")

	return cmd
}

// importFormatDescriptions is keyed by format id for the --formats table.
var importFormatDescriptions = map[string]string{
	importer.FormatBitwardenCSV:  "Native CSV export",
	importer.FormatBitwardenJSON: "Native JSON export",
	importer.FormatEncryptedJSON: "Password-protected JSON export",
	importer.FormatLastPass:      "LastPass CSV export",
	importer.FormatOnePassword:   "1Password CSV export",
	importer.FormatChrome:        "Chrome password CSV export",
}

func importCmdFunc(cmd *cobra.Command, args []string) error {
	if list, _ := cmd.Flags().GetBool("formats"); list {
		return printImportFormats()
	}

	if len(args) != 2 {
		return errors.NewConfigurationError("a format and a file are required; see --formats", nil)
	}
	format, file := args[0], args[1]

	data, err := os.ReadFile(file)
	if err != nil {
		return errors.NewStorageIOError(fmt.Sprintf("reading %s", file), err)
	}

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

	userKey, _, err := recoverUserKey(ctx, app, masterPassword)
	if err != nil {
		return err
	}
	defer userKey.Zero()

	opts := importer.Options{}
	if filePassword, _ := cmd.Flags().GetString("password"); filePassword != "" {
		opts.Password = crypto.NewSecret(filePassword)
	}

	writer := importer.NewAPIWriter(app.client, userKey)
	result, err := importer.Import(ctx, writer, format, data, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d items (%d folders).\n", result.ItemsCreated, result.FolderCount)
	return nil
}

func printImportFormats() error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Format", "Description")
	for _, id := range importer.Formats() {
		if err := table.Append(id, importFormatDescriptions[id]); err != nil {
			return err
		}
	}
	return table.Render()
}
