// Package awscli answers AWS inventory and status queries by running the aws
// CLI with JSON output.
package awscli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/infrapilot/infrapilot/internal/executor"
	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/infrapilot/infrapilot/internal/provider"
)

// Config configures the CLI backend.
type Config struct {
	Profile string
}

// Backend runs aws CLI queries through a runner.
type Backend struct {
	runner  executor.Runner
	profile string
}

// New returns a CLI backend.
func New(runner executor.Runner, cfg Config) *Backend {
	return &Backend{runner: runner, profile: cfg.Profile}
}

func (b *Backend) Name() string { return "aws" }

func (b *Backend) Kinds() []ir.Kind {
	return []ir.Kind{ir.KindStack, ir.KindBucket, ir.KindInstance, ir.KindTable}
}

// Preflight checks the caller identity.
func (b *Backend) Preflight(ctx context.Context) error {
	var out struct {
		Account string `json:"Account"`
		Arn     string `json:"Arn"`
	}
	if err := b.query(ctx, &out, "", "sts", "get-caller-identity"); err != nil {
		return err
	}
	if out.Account == "" {
		return fmt.Errorf("caller identity has no account")
	}
	return nil
}

func (b *Backend) Inventory(ctx context.Context, kind ir.Kind, region string) (*ir.Inventory, error) {
	inv := &ir.Inventory{Kind: kind, Region: region}
	add := func(id, typ, status string, tags map[string]string) {
		inv.Resources = append(inv.Resources, &ir.ResourceDescriptor{ID: id, Kind: kind, Type: typ, Status: status, Tags: tags})
	}

	switch kind {
	case ir.KindStack:
		var out listStacksOutput
		if err := b.query(ctx, &out, region, "cloudformation", "list-stacks"); err != nil {
			return nil, err
		}
		for _, s := range out.StackSummaries {
			if s.StackStatus == ir.StatusDeleted {
				continue
			}
			add(s.StackName, "AWS::CloudFormation::Stack", s.StackStatus, nil)
		}
	case ir.KindBucket:
		var out listBucketsOutput
		if err := b.query(ctx, &out, region, "s3api", "list-buckets"); err != nil {
			return nil, err
		}
		for _, bucket := range out.Buckets {
			add(bucket.Name, "AWS::S3::Bucket", "", nil)
		}
	case ir.KindInstance:
		var out describeInstancesOutput
		if err := b.query(ctx, &out, region, "ec2", "describe-instances"); err != nil {
			return nil, err
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				if inst.State.Name == "terminated" {
					continue
				}
				add(inst.InstanceID, "AWS::EC2::Instance", inst.State.Name, inst.tags())
			}
		}
	case ir.KindTable:
		var out listTablesOutput
		if err := b.query(ctx, &out, region, "dynamodb", "list-tables"); err != nil {
			return nil, err
		}
		for _, name := range out.TableNames {
			add(name, "AWS::DynamoDB::Table", "", nil)
		}
	default:
		return nil, fmt.Errorf("aws backend does not serve %s resources", kind)
	}
	return inv, nil
}

func (b *Backend) Exists(ctx context.Context, kind ir.Kind, region, id string) (bool, error) {
	var err error
	switch kind {
	case ir.KindStack, ir.KindTable:
		var report *ir.StatusReport
		report, err = b.Status(ctx, kind, region, id)
		if err == nil {
			return report.Status != ir.StatusDeleted, nil
		}
	case ir.KindBucket:
		err = b.query(ctx, nil, region, "s3api", "head-bucket", "--bucket", id)
	case ir.KindInstance:
		var out describeInstancesOutput
		err = b.query(ctx, &out, region, "ec2", "describe-instances", "--instance-ids", id)
		if err == nil {
			for _, res := range out.Reservations {
				for _, inst := range res.Instances {
					if inst.InstanceID == id && inst.State.Name != "terminated" {
						return true, nil
					}
				}
			}
			return false, nil
		}
	default:
		return false, fmt.Errorf("aws backend does not serve %s resources", kind)
	}
	return provider.Found(err)
}

func (b *Backend) Status(ctx context.Context, kind ir.Kind, region, id string) (*ir.StatusReport, error) {
	var err error
	switch kind {
	case ir.KindStack:
		var out describeStacksOutput
		err = b.query(ctx, &out, region, "cloudformation", "describe-stacks", "--stack-name", id)
		if err == nil {
			if len(out.Stacks) == 0 {
				return &ir.StatusReport{Status: ir.StatusDeleted}, nil
			}
			s := out.Stacks[0]
			return &ir.StatusReport{Status: s.StackStatus, Reason: s.StackStatusReason}, nil
		}
	case ir.KindTable:
		var out describeTableOutput
		err = b.query(ctx, &out, region, "dynamodb", "describe-table", "--table-name", id)
		if err == nil {
			return &ir.StatusReport{Status: out.Table.TableStatus}, nil
		}
	default:
		return nil, fmt.Errorf("%s resources have no asynchronous status", kind)
	}
	return provider.DeletedOr(err)
}

// query runs an aws CLI call and decodes its JSON output into out. A nil out
// only checks the exit status.
func (b *Backend) query(ctx context.Context, out any, region string, args ...string) error {
	cmd := b.command(region, args...)
	res := b.runner.Run(ctx, cmd)
	if !res.Succeeded() {
		if res.Err == nil && isNotFound(res.Diagnostic()) {
			return fmt.Errorf("%w: %s", provider.ErrNotFound, res.Diagnostic())
		}
		return executor.Failure(res)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Stdout), out); err != nil {
		return outcome.DecodeError([]byte(res.Stdout), err)
	}
	return nil
}

func (b *Backend) command(region string, args ...string) ir.Command {
	argv := append([]string{"aws"}, args...)
	if region != "" {
		argv = append(argv, "--region", region)
	}
	if b.profile != "" {
		argv = append(argv, "--profile", b.profile)
	}
	argv = append(argv, "--output", "json")
	return ir.NewCommand(argv...)
}

var notFoundMarkers = []string{
	"does not exist",
	"notfound",
	"not found",
	"resourcenotfoundexception",
	"nosuchbucket",
	"(404)",
}

func isNotFound(diagnostic string) bool {
	msg := strings.ToLower(diagnostic)
	for _, m := range notFoundMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
