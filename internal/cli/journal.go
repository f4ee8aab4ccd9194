package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/infrapilot/infrapilot/internal/config"
	"github.com/infrapilot/infrapilot/internal/journal"
	"github.com/infrapilot/infrapilot/internal/logging"
	"github.com/spf13/cobra"
)

func newJournalCommand(g *globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent action outcomes",
		Long: `Prints the most recent entries of the action journal: one line per
dispatched action with who ran it, the outcome and the resource it targeted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context(), g.configPath)
			if err != nil {
				return err
			}
			path := cfg.Journal.Path
			if g.journalPath != "" {
				path = g.journalPath
			}

			j := journal.New(path)
			entries, err := j.Read(limit)
			if err != nil {
				return err
			}
			logging.Debug("read journal", "path", j.Path(), "entries", len(entries))

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				if entries == nil {
					entries = []journal.Entry{}
				}
				data, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal journal: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "No journal entries.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tUSER\tACTION\tOUTCOME\tTARGET")
			for _, e := range entries {
				target := e.Target
				if e.AutoCorrected && e.Requested != "" {
					target = fmt.Sprintf("%s (requested %s)", e.Target, e.Requested)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp, e.User, e.Action, e.Outcome, target)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")
	return cmd
}
