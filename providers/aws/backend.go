// Package aws answers AWS inventory and status queries through the AWS SDK.
package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/provider"
)

// Config configures the SDK session.
type Config struct {
	Region  string
	Profile string
}

// Backend queries AWS through SDK clients built once per process.
type Backend struct {
	clients Clients
}

// New loads the default SDK configuration and builds the service clients.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewWithClients(Clients{
		CloudFormation: cloudformation.NewFromConfig(awsCfg),
		S3:             s3.NewFromConfig(awsCfg),
		EC2:            ec2.NewFromConfig(awsCfg),
		DynamoDB:       dynamodb.NewFromConfig(awsCfg),
		STS:            sts.NewFromConfig(awsCfg),
	}), nil
}

// NewWithClients returns a backend using the given clients.
func NewWithClients(clients Clients) *Backend {
	return &Backend{clients: clients}
}

func (b *Backend) Name() string { return "aws" }

func (b *Backend) Kinds() []ir.Kind {
	return []ir.Kind{ir.KindStack, ir.KindBucket, ir.KindInstance, ir.KindTable}
}

// Preflight checks the caller identity.
func (b *Backend) Preflight(ctx context.Context) error {
	out, err := b.clients.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("failed to get caller identity: %w", err)
	}
	if awssdk.ToString(out.Account) == "" {
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
		p := cloudformation.NewListStacksPaginator(b.clients.CloudFormation, &cloudformation.ListStacksInput{})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx, withCFNRegion(region))
			if err != nil {
				return nil, fmt.Errorf("failed to list stacks: %w", err)
			}
			for _, s := range page.StackSummaries {
				if s.StackStatus == cfntypes.StackStatusDeleteComplete {
					continue
				}
				add(awssdk.ToString(s.StackName), "AWS::CloudFormation::Stack", string(s.StackStatus), nil)
			}
		}
	case ir.KindBucket:
		out, err := b.clients.S3.ListBuckets(ctx, &s3.ListBucketsInput{}, withS3Region(region))
		if err != nil {
			return nil, fmt.Errorf("failed to list buckets: %w", err)
		}
		for _, bucket := range out.Buckets {
			add(awssdk.ToString(bucket.Name), "AWS::S3::Bucket", "", nil)
		}
	case ir.KindInstance:
		p := ec2.NewDescribeInstancesPaginator(b.clients.EC2, &ec2.DescribeInstancesInput{})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx, withEC2Region(region))
			if err != nil {
				return nil, fmt.Errorf("failed to describe instances: %w", err)
			}
			for _, res := range page.Reservations {
				for _, inst := range res.Instances {
					state := instanceState(inst)
					if state == string(ec2types.InstanceStateNameTerminated) {
						continue
					}
					add(awssdk.ToString(inst.InstanceId), "AWS::EC2::Instance", state, instanceTags(inst.Tags))
				}
			}
		}
	case ir.KindTable:
		p := dynamodb.NewListTablesPaginator(b.clients.DynamoDB, &dynamodb.ListTablesInput{})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx, withDynamoDBRegion(region))
			if err != nil {
				return nil, fmt.Errorf("failed to list tables: %w", err)
			}
			for _, name := range page.TableNames {
				add(name, "AWS::DynamoDB::Table", "", nil)
			}
		}
	default:
		return nil, fmt.Errorf("aws backend does not serve %s resources", kind)
	}
	return inv, nil
}

func (b *Backend) Exists(ctx context.Context, kind ir.Kind, region, id string) (bool, error) {
	switch kind {
	case ir.KindStack, ir.KindTable:
		report, err := b.Status(ctx, kind, region, id)
		if err != nil {
			return false, err
		}
		return report.Status != ir.StatusDeleted, nil
	case ir.KindBucket:
		_, err := b.clients.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: awssdk.String(id)}, withS3Region(region))
		return provider.Found(classify(err))
	case ir.KindInstance:
		out, err := b.clients.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, withEC2Region(region))
		if err != nil {
			return provider.Found(classify(err))
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				if awssdk.ToString(inst.InstanceId) == id && instanceState(inst) != string(ec2types.InstanceStateNameTerminated) {
					return true, nil
				}
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("aws backend does not serve %s resources", kind)
}

func (b *Backend) Status(ctx context.Context, kind ir.Kind, region, id string) (*ir.StatusReport, error) {
	switch kind {
	case ir.KindStack:
		out, err := b.clients.CloudFormation.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: awssdk.String(id)}, withCFNRegion(region))
		if err != nil {
			return provider.DeletedOr(classify(err))
		}
		if len(out.Stacks) == 0 {
			return &ir.StatusReport{Status: ir.StatusDeleted}, nil
		}
		s := out.Stacks[0]
		return &ir.StatusReport{Status: string(s.StackStatus), Reason: awssdk.ToString(s.StackStatusReason)}, nil
	case ir.KindTable:
		out, err := b.clients.DynamoDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: awssdk.String(id)}, withDynamoDBRegion(region))
		if err != nil {
			return provider.DeletedOr(classify(err))
		}
		if out.Table == nil {
			return &ir.StatusReport{Status: ir.StatusDeleted}, nil
		}
		return &ir.StatusReport{Status: string(out.Table.TableStatus)}, nil
	}
	return nil, fmt.Errorf("%s resources have no asynchronous status", kind)
}

// notFoundCodes are API error codes meaning the resource is gone.
var notFoundCodes = map[string]bool{
	"NotFound":                   true,
	"NoSuchBucket":               true,
	"InvalidInstanceID.NotFound": true,
	"ResourceNotFoundException":  true,
}

// classify wraps not-found API errors with provider.ErrNotFound.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		// CloudFormation reports a missing stack as a validation error.
		if notFoundCodes[code] || code == "ValidationError" && strings.Contains(ae.ErrorMessage(), "does not exist") {
			return fmt.Errorf("%w: %s", provider.ErrNotFound, ae.ErrorMessage())
		}
	}
	return err
}

func instanceState(inst ec2types.Instance) string {
	if inst.State == nil {
		return ""
	}
	return string(inst.State.Name)
}

func instanceTags(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[awssdk.ToString(t.Key)] = awssdk.ToString(t.Value)
	}
	return m
}

func withCFNRegion(region string) func(*cloudformation.Options) {
	return func(o *cloudformation.Options) {
		if region != "" {
			o.Region = region
		}
	}
}

func withS3Region(region string) func(*s3.Options) {
	return func(o *s3.Options) {
		if region != "" {
			o.Region = region
		}
	}
}

func withEC2Region(region string) func(*ec2.Options) {
	return func(o *ec2.Options) {
		if region != "" {
			o.Region = region
		}
	}
}

func withDynamoDBRegion(region string) func(*dynamodb.Options) {
	return func(o *dynamodb.Options) {
		if region != "" {
			o.Region = region
		}
	}
}
