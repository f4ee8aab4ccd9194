// Package null provides offline stand-ins for the real backends: a
// fixture-backed Backend and a Runner that never spawns processes.
package null

import (
	"context"
	"errors"
	"fmt"

	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/provider"
)

// Backend serves the kinds owned by one backend name from a fixture.
type Backend struct {
	name    string
	fixture *Fixture
}

// New returns a backend registered as name ("aws" or "docker").
func New(name string, fixture *Fixture) *Backend {
	if fixture == nil {
		fixture = NewFixture()
	}
	return &Backend{name: name, fixture: fixture}
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Kinds() []ir.Kind {
	var kinds []ir.Kind
	for _, k := range ir.Kinds {
		if k.Backend() == b.name {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (b *Backend) Preflight(context.Context) error {
	if b.fixture.PreflightError != "" {
		return errors.New(b.fixture.PreflightError)
	}
	return nil
}

func (b *Backend) Inventory(_ context.Context, kind ir.Kind, region string) (*ir.Inventory, error) {
	if err := b.serves(kind); err != nil {
		return nil, err
	}
	inv := &ir.Inventory{Kind: kind, Region: region}
	for _, r := range b.fixture.list(kind) {
		inv.Resources = append(inv.Resources, &ir.ResourceDescriptor{
			ID:     r.ID,
			Kind:   kind,
			Status: r.Status,
			Tags:   r.Tags,
		})
	}
	return inv, nil
}

func (b *Backend) Exists(_ context.Context, kind ir.Kind, _ string, id string) (bool, error) {
	if err := b.serves(kind); err != nil {
		return false, err
	}
	b.fixture.mu.Lock()
	defer b.fixture.mu.Unlock()
	return b.fixture.find(kind, id) != nil, nil
}

func (b *Backend) Status(_ context.Context, kind ir.Kind, _ string, id string) (*ir.StatusReport, error) {
	if err := b.serves(kind); err != nil {
		return nil, err
	}
	return b.fixture.status(kind, id), nil
}

// Inspect returns the fixture entry for id.
func (b *Backend) Inspect(_ context.Context, kind ir.Kind, _ string, id string) (any, error) {
	if err := b.serves(kind); err != nil {
		return nil, err
	}
	b.fixture.mu.Lock()
	defer b.fixture.mu.Unlock()
	r := b.fixture.find(kind, id)
	if r == nil {
		return nil, fmt.Errorf("%w: %s %s", provider.ErrNotFound, kind, id)
	}
	c := *r
	return &c, nil
}

func (b *Backend) serves(kind ir.Kind) error {
	if kind.Backend() != b.name {
		return fmt.Errorf("%s backend does not serve %s resources", b.name, kind)
	}
	return nil
}
