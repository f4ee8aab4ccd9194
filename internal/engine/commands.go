package engine

import (
	"fmt"

	"github.com/infrapilot/infrapilot/internal/ir"
)

// DeleteCommand renders the CLI invocation that deletes id. The identifier
// and region are passed as bare arguments; nothing is interpreted by a shell.
func DeleteCommand(kind ir.Kind, id, region string) (ir.Command, error) {
	switch kind {
	case ir.KindStack:
		return ir.NewCommand("aws", "cloudformation", "delete-stack", "--stack-name", id, "--region", region), nil
	case ir.KindBucket:
		return ir.NewCommand("aws", "s3", "rb", "s3://"+id, "--region", region), nil
	case ir.KindInstance:
		return ir.NewCommand("aws", "ec2", "terminate-instances", "--instance-ids", id, "--region", region), nil
	case ir.KindTable:
		return ir.NewCommand("aws", "dynamodb", "delete-table", "--table-name", id, "--region", region), nil
	case ir.KindContainer:
		return ir.NewCommand("docker", "rm", "-f", id), nil
	case ir.KindVolume:
		return ir.NewCommand("docker", "volume", "rm", id), nil
	case ir.KindImage:
		return ir.NewCommand("docker", "image", "rm", id), nil
	}
	return ir.Command{}, fmt.Errorf("no delete command for kind %q", kind)
}

// DeployCommand renders the default stack deploy invocation.
func DeployCommand(templateFile, stack, region string, capabilities []string) ir.Command {
	args := []string{
		"aws", "cloudformation", "deploy",
		"--template-file", templateFile,
		"--stack-name", stack,
		"--region", region,
	}
	if len(capabilities) > 0 {
		args = append(args, "--capabilities")
		args = append(args, capabilities...)
	}
	return ir.NewCommand(args...)
}
