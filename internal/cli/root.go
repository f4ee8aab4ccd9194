// Package cli hosts the infrapilot command tree. Each command routes an
// instruction to one engine action and prints the outcome.
package cli

import (
	"context"
	"errors"

	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/spf13/cobra"
)

// globals holds the persistent flags.
type globals struct {
	configPath  string
	region      string
	logLevel    string
	verbose     bool
	dryRun      bool
	metricsFile string
	journalPath string
	jsonOutput  bool
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "infrapilot",
		Short: "Turn infrastructure instructions into finished actions",
		Long: `infrapilot takes a free-text or JSON instruction, resolves the resource it
names against live AWS or Docker state, runs the matching aws/docker command
and, for asynchronous operations, waits until the change settles.

Examples:
  infrapilot delete stack "delete stack named demo-app"
  infrapilot deploy "deploy stack billing-api in eu-west-1" --template infra.yaml
  infrapilot run-container "run web from image nginx:1.27 -p 8080:80"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (YAML or .pkl)")
	rootCmd.PersistentFlags().StringVar(&g.region, "region", "", "default AWS region")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "shorthand for --log-level debug")
	rootCmd.PersistentFlags().BoolVar(&g.dryRun, "dry-run", false, "print state-changing commands instead of running them")
	rootCmd.PersistentFlags().StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	rootCmd.PersistentFlags().StringVar(&g.journalPath, "journal", "", "action journal path")
	rootCmd.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "print outcomes as JSON")

	rootCmd.AddCommand(newDeleteCommand(g))
	rootCmd.AddCommand(newDeployCommand(g))
	rootCmd.AddCommand(newRunContainerCommand(g))
	rootCmd.AddCommand(newTemplateCommand(g))
	rootCmd.AddCommand(newListCommand(g))
	rootCmd.AddCommand(newWaitCommand(g))
	rootCmd.AddCommand(newInspectCommand(g))
	rootCmd.AddCommand(newDoCommand(g))
	rootCmd.AddCommand(newActionsCommand(g))
	rootCmd.AddCommand(newJournalCommand(g))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// outcomeError reports an outcome that was printed but did not succeed.
type outcomeError struct {
	kind outcome.Kind
}

func (e *outcomeError) Error() string { return "action ended with " + string(e.kind) }

// ExitCode maps an Execute error to a process exit status: 0 on success, 2
// for an advisory timeout and 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var oe *outcomeError
	if errors.As(err, &oe) && oe.kind == outcome.KindTimeout {
		return 2
	}
	return 1
}

// Printed reports whether err describes an outcome already shown to the user.
func Printed(err error) bool {
	var oe *outcomeError
	return errors.As(err, &oe)
}
