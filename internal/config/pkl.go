package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/apple/pkl-go/pkl"
)

// loadPkl evaluates a PKL module whose properties mirror the YAML keys.
func loadPkl(ctx context.Context, path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	evaluator, err := pkl.NewEvaluator(ctx, pkl.PreconfiguredOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var cfg Config
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(abs), &cfg); err != nil {
		return nil, fmt.Errorf("failed to evaluate config: %w", err)
	}
	return &cfg, nil
}
