package commands

import (
	"cmp"
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand prints build metadata.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "EasyVault Client\nVersion: %s\nBuild Date: %s\n",
				cmp.Or(info.Version, "N/A"), cmp.Or(info.BuildDate, "N/A"))
		},
	}
}
