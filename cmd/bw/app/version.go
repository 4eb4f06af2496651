package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dasien/bwcli/pkg/versions"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE:  versionCmdFunc,
	}

	cmd.Flags().String("format", "text", "Output format (json or text)")

	return cmd
}

func versionCmdFunc(cmd *cobra.Command, _ []string) error {
	info := versions.GetVersionInfo()

	format, _ := cmd.Flags().GetString("format")
	if format == "json" {
		encoded, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Printf("bw %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built: %s\n", info.BuildDate)
	fmt.Printf("go: %s (%s)\n", info.GoVersion, info.Platform)
	return nil
}
