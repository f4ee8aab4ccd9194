package null

import (
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/infrapilot/infrapilot/internal/ir"
	"gopkg.in/yaml.v3"
)

// Resource is one fixture entry.
type Resource struct {
	ID       string            `yaml:"id"`
	Status   string            `yaml:"status,omitempty"`
	ExitCode int               `yaml:"exit_code,omitempty"`
	Reason   string            `yaml:"reason,omitempty"`
	Tags     map[string]string `yaml:"tags,omitempty"`
}

// Fixture is an in-memory world of resources shared by the offline backends
// and the dry-run runner.
//
//	preflight_error: ""
//	resources:
//	  stack:
//	    - id: demo-app
//	      status: CREATE_COMPLETE
//	statuses:
//	  stack/demo-app: [DELETE_IN_PROGRESS, DELETE_COMPLETE]
type Fixture struct {
	mu sync.Mutex

	PreflightError string                  `yaml:"preflight_error,omitempty"`
	Resources      map[ir.Kind][]*Resource `yaml:"resources"`
	// Statuses scripts successive status answers per kind/id. The last
	// entry repeats once the script is exhausted.
	Statuses map[string][]string `yaml:"statuses,omitempty"`
}

// NewFixture returns an empty fixture.
func NewFixture() *Fixture {
	return &Fixture{Resources: make(map[ir.Kind][]*Resource), Statuses: make(map[string][]string)}
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	f := NewFixture()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	for kind := range f.Resources {
		if _, err := ir.ParseKind(string(kind)); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", path, err)
		}
	}
	return f, nil
}

// Add inserts or replaces a resource.
func (f *Fixture) Add(kind ir.Kind, r *Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Resources == nil {
		f.Resources = make(map[ir.Kind][]*Resource)
	}
	list := f.Resources[kind]
	if i := slices.IndexFunc(list, func(e *Resource) bool { return e.ID == r.ID }); i >= 0 {
		list[i] = r
		return
	}
	f.Resources[kind] = append(list, r)
}

// Remove deletes a resource and reports whether it existed.
func (f *Fixture) Remove(kind ir.Kind, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.Resources[kind]
	i := slices.IndexFunc(list, func(e *Resource) bool { return e.ID == id })
	if i < 0 {
		return false
	}
	f.Resources[kind] = slices.Delete(list, i, i+1)
	return true
}

// Script sets the status answers for kind/id.
func (f *Fixture) Script(kind ir.Kind, id string, statuses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Statuses == nil {
		f.Statuses = make(map[string][]string)
	}
	f.Statuses[scriptKey(kind, id)] = statuses
}

func (f *Fixture) find(kind ir.Kind, id string) *Resource {
	for _, r := range f.Resources[kind] {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *Fixture) list(kind ir.Kind) []*Resource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.Resources[kind])
}

func (f *Fixture) status(kind ir.Kind, id string) *ir.StatusReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.find(kind, id)
	key := scriptKey(kind, id)
	if script := f.Statuses[key]; len(script) > 0 {
		status := script[0]
		if len(script) > 1 {
			f.Statuses[key] = script[1:]
		}
		report := &ir.StatusReport{Status: status}
		if r != nil {
			report.Reason = r.Reason
			report.ExitCode = r.ExitCode
		}
		return report
	}
	if r == nil {
		return &ir.StatusReport{Status: ir.StatusDeleted}
	}
	return &ir.StatusReport{Status: r.Status, Reason: r.Reason, ExitCode: r.ExitCode}
}

func scriptKey(kind ir.Kind, id string) string {
	return string(kind) + "/" + id
}
