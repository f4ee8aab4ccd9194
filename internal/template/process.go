package template

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBucketPrefix namespaces synthesized bucket names.
	DefaultBucketPrefix = "cf-bucket"
	// DefaultSuffixLength is the length of the random bucket name suffix.
	DefaultSuffixLength = 6
	// MaxBucketNameLength is the S3 limit on bucket names.
	MaxBucketNameLength = 63

	typeBucket = "AWS::S3::Bucket"
	typeTable  = "AWS::DynamoDB::Table"

	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	invalidBucketChars = regexp.MustCompile(`[^a-z0-9-]+`)
	validBucketName    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)
)

// RandSource yields random integers in [0, n).
type RandSource interface {
	IntN(n int) int
}

// Options control post-processing.
type Options struct {
	BucketPrefix string
	SuffixLength int
	Rand         RandSource
}

func (o Options) withDefaults() Options {
	if o.BucketPrefix == "" {
		o.BucketPrefix = DefaultBucketPrefix
	}
	if o.SuffixLength <= 0 {
		o.SuffixLength = DefaultSuffixLength
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}

// Skipped records a resource entry that was left untouched.
type Skipped struct {
	Name   string
	Reason string
}

// Report summarizes a post-processing run.
type Report struct {
	Processed []string
	Skipped   []Skipped
	// BucketNames maps logical names to synthesized bucket names.
	BucketNames map[string]string
	// EmptyProperties lists entries whose Properties key was removed.
	EmptyProperties []string
}

// Process normalizes every resource entry in place. Malformed entries are
// skipped and reported; only a malformed document is an error.
func Process(doc *Document, opts Options) (*Report, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	report := &Report{BucketNames: make(map[string]string)}
	for i := 0; i+1 < len(resources.Content); i += 2 {
		name := resources.Content[i].Value
		entry := resources.Content[i+1]

		if entry.Kind != yaml.MappingNode {
			report.Skipped = append(report.Skipped, Skipped{Name: name, Reason: "not a mapping"})
			continue
		}
		typ := lookup(entry, "Type")
		if typ == nil || typ.Kind != yaml.ScalarNode || strings.TrimSpace(typ.Value) == "" {
			report.Skipped = append(report.Skipped, Skipped{Name: name, Reason: "missing Type"})
			continue
		}

		props := lookup(entry, "Properties")
		if props != nil && props.Kind != yaml.MappingNode {
			if props.Tag != "!!null" {
				report.Skipped = append(report.Skipped, Skipped{Name: name, Reason: "Properties is not a mapping"})
				continue
			}
			props = nil
		}

		switch typ.Value {
		case typeBucket:
			if bucket := processBucket(name, props, opts); bucket != "" {
				if props == nil {
					props = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
				}
				set(props, "BucketName", scalar(bucket))
				report.BucketNames[name] = bucket
			}
		case typeTable:
			processTable(props)
		}

		if props == nil || len(props.Content) == 0 {
			if remove(entry, "Properties") {
				report.EmptyProperties = append(report.EmptyProperties, name)
			}
		} else {
			set(entry, "Properties", props)
		}
		report.Processed = append(report.Processed, name)
	}
	return report, nil
}

// processBucket returns a bucket name to set, or "" to leave the entry alone.
func processBucket(logical string, props *yaml.Node, opts Options) string {
	current := lookup(props, "BucketName")
	if current != nil {
		// Intrinsic functions are resolved by CloudFormation.
		if current.Kind != yaml.ScalarNode || isIntrinsic(current) {
			return ""
		}
		if name := strings.ToLower(strings.TrimSpace(current.Value)); validBucketName.MatchString(name) {
			if name == current.Value {
				return ""
			}
			return name
		}
	}
	return BucketName(opts.BucketPrefix, logical, randomSuffix(opts.Rand, opts.SuffixLength))
}

func isIntrinsic(n *yaml.Node) bool {
	return strings.HasPrefix(n.Tag, "!") && !strings.HasPrefix(n.Tag, "!!")
}

// processTable drops provisioned throughput from on-demand tables.
func processTable(props *yaml.Node) {
	mode := lookup(props, "BillingMode")
	if mode != nil && strings.EqualFold(mode.Value, "PAY_PER_REQUEST") {
		remove(props, "ProvisionedThroughput")
	}
}

// BucketName builds prefix-logical-suffix, restricted to [a-z0-9-] and at
// most MaxBucketNameLength characters. The logical part is truncated first.
func BucketName(prefix, logical, suffix string) string {
	clean := func(s string) string {
		s = invalidBucketChars.ReplaceAllString(strings.ToLower(s), "")
		return strings.Trim(s, "-")
	}
	prefix, logical, suffix = clean(prefix), clean(logical), clean(suffix)

	room := MaxBucketNameLength - len(prefix) - len(suffix) - 2
	if room < 0 {
		room = 0
	}
	if len(logical) > room {
		logical = strings.TrimRight(logical[:room], "-")
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, logical, suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	name := strings.ToLower(strings.Join(parts, "-"))
	if len(name) > MaxBucketNameLength {
		name = strings.TrimRight(name[:MaxBucketNameLength], "-")
	}
	return name
}

func randomSuffix(r RandSource, n int) string {
	var b strings.Builder
	for range n {
		b.WriteByte(suffixAlphabet[r.IntN(len(suffixAlphabet))])
	}
	return b.String()
}

// Summary renders a one-line description of the report.
func (r *Report) Summary() string {
	s := fmt.Sprintf("processed %d resources", len(r.Processed))
	if len(r.Skipped) > 0 {
		s += fmt.Sprintf(", skipped %d", len(r.Skipped))
	}
	if len(r.BucketNames) > 0 {
		s += fmt.Sprintf(", named %d buckets", len(r.BucketNames))
	}
	return s
}
