package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewGetCommand prints the values of one entry.
func NewGetCommand(g *Globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print the values of one entry",
		Long: `Fetch the values of one entry. The vault must be unsealed and the
entry's address and agent patterns must allow this client.

Examples:
  easyvault get billing-api
  easyvault get billing-api --format lines >> .env`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.NewClient(args[0])
			if err != nil {
				return err
			}

			switch format {
			case "lines", "plain":
				raw, err := c.GetSecretsRaw(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), raw)
			case "structured", "json", "":
				values, err := c.GetSecrets(cmd.Context())
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(values, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			default:
				return fmt.Errorf("unknown format %q (want structured or lines)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "structured", "output format: structured or lines")
	return cmd
}
