package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/atinyakov/easyvault/pkg/client"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewPushCommand uploads a batch of entries from a JSON file.
func NewPushCommand(g *Globals) *cobra.Command {
	var (
		passphrase  string
		file        string
		generateIDs bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Replace the batch stored under a passphrase",
		Long: `Upload a JSON array of entries as the new batch for the passphrase.

Examples:
  easyvault push --file entries.json
  easyvault push --file entries.json --generate-ids`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			var entries []client.Entry
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if generateIDs {
				for i := range entries {
					if entries[i].ID == "" {
						entries[i].ID = uuid.NewString()
					}
				}
			}

			p, err := resolvePassphrase(g, passphrase, cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := g.NewClient("")
			if err != nil {
				return err
			}
			if err := c.WriteBatch(cmd.Context(), p, entries); err != nil {
				return err
			}

			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.ID, e.OwnerLabel)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Pushed %d entries\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&passphrase, "passphrase", "", "vault passphrase")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with an array of entries")
	cmd.Flags().BoolVar(&generateIDs, "generate-ids", false, "assign random ids to entries without one")
	return cmd
}
