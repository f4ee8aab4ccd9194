package cli

import (
	"fmt"
	"strings"

	"github.com/infrapilot/infrapilot/internal/engine"
	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/provider"
	"github.com/spf13/cobra"
)

func newDeleteCommand(g *globals) *cobra.Command {
	var (
		name string
		wait bool
	)

	cmd := &cobra.Command{
		Use:   "delete <kind> [instruction...]",
		Short: "Delete a stack, bucket, instance, table, container, volume or image",
		Long: `Resolves the resource named in the instruction against the live inventory
and deletes it. A near-miss name is corrected when it matches exactly one
resource; otherwise the known names are listed.

Deletion is fire-and-forget unless --wait is given, in which case stacks,
tables and containers are polled until they are gone.`,
		Example: `  infrapilot delete stack "delete stack named demo-app"
  infrapilot delete bucket logs-archive --region eu-west-1
  infrapilot delete stack --name demo-app --wait`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := ir.ParseKind(args[0])
			if err != nil {
				return err
			}
			raw, err := instruction(cmd, args[1:])
			if err != nil {
				return err
			}
			params := map[string]string{}
			setParam(params, cmd, "name", "identifier", name)
			return dispatch(cmd, g, "delete-"+string(kind), engine.Input{Raw: raw, Params: params}, func(o *engine.Options) {
				o.DeleteWait = o.DeleteWait || wait
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "resource name, instead of reading it from the instruction")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the resource is gone")
	return cmd
}

func newDeployCommand(g *globals) *cobra.Command {
	var (
		stack        string
		templateFile string
		draft        string
	)

	cmd := &cobra.Command{
		Use:   "deploy [instruction...]",
		Short: "Deploy a CloudFormation stack and wait for it to finish",
		Long: `Runs aws cloudformation deploy for the stack named in the instruction
(MyStack when none is named) and polls the stack until it reaches a terminal
status. A drafted command may be supplied with --command; markdown fences
around it are ignored.`,
		Example: `  infrapilot deploy "deploy stack billing-api in eu-west-1" --template infra.yaml
  infrapilot deploy --command "aws cloudformation deploy --template-file t.yaml --stack-name api"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := instruction(cmd, args)
			if err != nil {
				return err
			}
			params := map[string]string{}
			setParam(params, cmd, "stack", "identifier", stack)
			setParam(params, cmd, "template", "template", templateFile)
			setParam(params, cmd, "command", "command", draft)
			return dispatch(cmd, g, "deploy-stack", engine.Input{Raw: raw, Params: params})
		},
	}

	cmd.Flags().StringVar(&stack, "stack", "", "stack name")
	cmd.Flags().StringVar(&templateFile, "template", "", "template file (default from config)")
	cmd.Flags().StringVar(&draft, "command", "", "drafted aws cloudformation command to run instead of the default")
	return cmd
}

func newRunContainerCommand(g *globals) *cobra.Command {
	var (
		name     string
		image    string
		ports    []string
		platform string
		env      []string
		restart  string
	)

	cmd := &cobra.Command{
		Use:   "run-container [instruction...]",
		Short: "Run a detached docker container and wait for it to start",
		Example: `  infrapilot run-container "run container named web from image nginx:1.27 -p 8080:80"
  infrapilot run-container --name api --image ghcr.io/acme/api:2 --port 8080:8080 --env MODE=prod`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := instruction(cmd, args)
			if err != nil {
				return err
			}
			params := map[string]string{}
			setParam(params, cmd, "name", "identifier", name)
			setParam(params, cmd, "image", "image", image)
			setParam(params, cmd, "port", "ports", strings.Join(ports, ","))
			setParam(params, cmd, "platform", "platform", platform)
			setParam(params, cmd, "env", "env", strings.Join(env, ","))
			setParam(params, cmd, "restart", "restart", restart)
			return dispatch(cmd, g, "run-container", engine.Input{Raw: raw, Params: params})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "container name")
	cmd.Flags().StringVar(&image, "image", "", "image reference")
	cmd.Flags().StringArrayVarP(&ports, "port", "p", nil, "port mapping host:container (repeatable)")
	cmd.Flags().StringVar(&platform, "platform", "", "platform os/arch[/variant]")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "environment KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&restart, "restart", "", "restart policy")
	return cmd
}

func newTemplateCommand(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template [file|-]",
		Short: "Fix up a drafted CloudFormation template",
		Long: `Reads a drafted template (YAML or JSON, optionally wrapped in a markdown
fence) from a file or stdin, gives every S3 bucket a valid unique name,
drops provisioned throughput from on-demand DynamoDB tables, removes empty
Properties blocks and writes the result.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := engine.Input{Params: map[string]string{}}
			if len(args) == 1 && args[0] != "-" {
				in.Params["file"] = args[0]
			} else {
				raw, err := instruction(cmd, []string{"-"})
				if err != nil {
					return err
				}
				in.Raw = raw
			}
			setParam(in.Params, cmd, "output", "output", output)
			return dispatch(cmd, g, "process-template", in)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default from config)")
	return cmd
}

func newListCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind> [instruction...]",
		Short: "List live resources of a kind",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := ir.ParseKind(args[0])
			if err != nil {
				return err
			}
			return dispatch(cmd, g, "list-"+string(kind), engine.Input{Raw: strings.Join(args[1:], " ")})
		},
	}
}

func newWaitCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "wait <kind> <name...>",
		Short: "Wait for a stack, table or container to reach a terminal status",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := ir.ParseKind(args[0])
			if err != nil {
				return err
			}
			if !kind.Async() {
				return fmt.Errorf("%s changes complete synchronously; nothing to wait for", kind)
			}
			return dispatch(cmd, g, "wait-"+string(kind), engine.Input{Raw: strings.Join(args[1:], " ")})
		},
	}
}

func newInspectCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <kind> <name...>",
		Short: "Print the full JSON description of a container, volume or image",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := ir.ParseKind(args[0])
			if err != nil {
				return err
			}
			if kind.Backend() != "docker" {
				return fmt.Errorf("%s resources cannot be inspected; use list", kind)
			}
			return dispatch(cmd, g, "inspect-"+string(kind), engine.Input{Raw: strings.Join(args[1:], " ")})
		},
	}
}

func newDoCommand(g *globals) *cobra.Command {
	var params map[string]string

	cmd := &cobra.Command{
		Use:   "do <action> [instruction...]",
		Short: "Route an instruction to any action by name",
		Long: `Runs one entry of the dispatch table. This is the entry point for agents
that pick the action themselves; see 'infrapilot actions' for the names.`,
		Example: `  infrapilot do delete-stack "delete stack named demo-app"
  echo '{"stack_name": "demo-app"}' | infrapilot do delete-stack -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := instruction(cmd, args[1:])
			if err != nil {
				return err
			}
			return dispatch(cmd, g, args[0], engine.Input{Raw: raw, Params: params})
		},
	}

	cmd.Flags().StringToStringVarP(&params, "param", "P", nil, "extra parameters (key=value)")
	return cmd
}

func newActionsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the available actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine.New(provider.NewRegistry(), nil, engine.DefaultOptions())
			out := cmd.OutOrStdout()
			for _, a := range e.Actions() {
				fmt.Fprintf(out, "%-18s %s\n", a.Name(), a.Describe())
			}
			return nil
		},
	}
}
