package ir

import (
	"fmt"
	"strings"
)

// Kind is the closed set of resource kinds actions can target.
type Kind string

const (
	KindStack     Kind = "stack"
	KindBucket    Kind = "bucket"
	KindInstance  Kind = "instance"
	KindTable     Kind = "table"
	KindContainer Kind = "container"
	KindVolume    Kind = "volume"
	KindImage     Kind = "image"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindStack, KindBucket, KindInstance, KindTable, KindContainer, KindVolume, KindImage}

// ParseKind maps a user supplied kind name (singular or plural) to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	switch name {
	case "stack", "cloudformation", "cfn":
		return KindStack, nil
	case "bucket", "s3":
		return KindBucket, nil
	case "instance", "ec2":
		return KindInstance, nil
	case "table", "dynamodb":
		return KindTable, nil
	case "container":
		return KindContainer, nil
	case "volume":
		return KindVolume, nil
	case "image":
		return KindImage, nil
	}
	return "", fmt.Errorf("unknown resource kind: %s", s)
}

// Backend returns the name of the backend that owns the kind.
func (k Kind) Backend() string {
	switch k {
	case KindContainer, KindVolume, KindImage:
		return "docker"
	}
	return "aws"
}

// Regional reports whether the kind's identifiers are scoped to a region.
func (k Kind) Regional() bool {
	return k.Backend() == "aws"
}

// Async reports whether a state change on the kind completes asynchronously
// and can be polled.
func (k Kind) Async() bool {
	return k == KindStack || k == KindContainer || k == KindTable
}

// ResourceDescriptor describes one live resource.
type ResourceDescriptor struct {
	ID     string            `json:"id"`
	Kind   Kind              `json:"kind"`
	Type   string            `json:"type,omitempty"`
	Status string            `json:"status,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Inventory is an ordered snapshot of live resources of one kind in one region.
type Inventory struct {
	Kind      Kind                  `json:"kind"`
	Region    string                `json:"region,omitempty"`
	Resources []*ResourceDescriptor `json:"resources"`
}

// IDs returns the identifiers in inventory order.
func (inv *Inventory) IDs() []string {
	if inv == nil {
		return nil
	}
	ids := make([]string, 0, len(inv.Resources))
	for _, r := range inv.Resources {
		ids = append(ids, r.ID)
	}
	return ids
}

// Len returns the number of resources in the inventory.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.Resources)
}

// StatusReport is the decoded answer to a status query.
type StatusReport struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	// ExitCode is only meaningful for container status.
	ExitCode int `json:"exitCode,omitempty"`
}

// StatusDeleted is reported for a resource that no longer exists, so waiting
// on a deletion terminates the same way for every kind.
const StatusDeleted = "DELETE_COMPLETE"
