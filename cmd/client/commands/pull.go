package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewPullCommand prints every entry stored under a passphrase.
func NewPullCommand(g *Globals) *cobra.Command {
	var passphrase string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Print the whole batch stored under a passphrase",
		Long: `Read the newest batch stored under the passphrase and print it as JSON.
A successful pull also unseals the server.

The passphrase comes from --passphrase, then ` + PassphraseVar + `, then stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolvePassphrase(g, passphrase, cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := g.NewClient("")
			if err != nil {
				return err
			}

			entries, err := c.ReadBatch(cmd.Context(), p)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	cmd.Flags().StringVar(&passphrase, "passphrase", "", "vault passphrase")
	return cmd
}
