package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/infrapilot/infrapilot/internal/engine"
	"github.com/infrapilot/infrapilot/internal/logging"
	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/spf13/cobra"
)

// dispatch runs one action through a freshly loaded app, prints the outcome
// and turns a non-success outcome into an error.
func dispatch(cmd *cobra.Command, g *globals, action string, in engine.Input, tweak ...func(*engine.Options)) error {
	app, err := loadApp(cmd.Context(), g)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.Warn("failed to write metrics", "error", err.Error())
		}
	}()

	o := app.Engine(tweak...).Dispatch(cmd.Context(), action, in)
	if err := render(cmd.OutOrStdout(), o, g.jsonOutput); err != nil {
		return err
	}
	if o.Kind != outcome.KindSuccess {
		return &outcomeError{kind: o.Kind}
	}
	return nil
}

func render(w io.Writer, o *outcome.Outcome, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal outcome: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if _, err := fmt.Fprintln(w, o.String()); err != nil {
		return err
	}
	if o.Kind == outcome.KindSuccess && o.Detail != "" {
		_, err := fmt.Fprintln(w, o.Detail)
		return err
	}
	return nil
}

// instruction joins positional arguments into one instruction. A single "-"
// reads the instruction from stdin.
func instruction(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

// setParam records a flag value when the flag was given.
func setParam(params map[string]string, cmd *cobra.Command, flag, key, value string) {
	if cmd.Flags().Changed(flag) {
		params[key] = value
	}
}
