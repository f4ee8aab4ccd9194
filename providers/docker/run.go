package docker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/infrapilot/infrapilot/internal/ir"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// RunSpec describes a detached container to start with docker run.
type RunSpec struct {
	Name     string
	Image    string
	Ports    []string
	Platform *v1.Platform
	Env      map[string]string
	Restart  string
}

// Validate checks the spec before anything is run. Port specs follow the
// docker -p grammar.
func (s RunSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("container name is required")
	}
	if strings.TrimSpace(s.Image) == "" {
		return fmt.Errorf("image is required for container %s", s.Name)
	}
	if len(s.Ports) > 0 {
		if _, _, err := nat.ParsePortSpecs(s.Ports); err != nil {
			return fmt.Errorf("invalid port mapping: %w", err)
		}
	}
	if s.Platform != nil && (s.Platform.OS == "" || s.Platform.Architecture == "") {
		return fmt.Errorf("invalid platform %q: expected os/arch[/variant]", FormatPlatform(s.Platform))
	}
	if s.Restart != "" {
		policy := container.RestartPolicy{Name: container.RestartPolicyMode(s.Restart)}
		if err := container.ValidateRestartPolicy(policy); err != nil {
			return fmt.Errorf("invalid restart policy: %w", err)
		}
	}
	return nil
}

// ExposedPorts returns the container ports published by the spec.
func (s RunSpec) ExposedPorts() ([]string, error) {
	exposed, _, err := nat.ParsePortSpecs(s.Ports)
	if err != nil {
		return nil, err
	}
	ports := make([]string, 0, len(exposed))
	for p := range exposed {
		ports = append(ports, string(p))
	}
	sort.Strings(ports)
	return ports, nil
}

// Command renders the docker run invocation.
func (s RunSpec) Command() ir.Command {
	args := []string{"docker", "run", "-d", "--name", s.Name}
	if s.Platform != nil {
		args = append(args, "--platform", FormatPlatform(s.Platform))
	}
	for _, p := range s.Ports {
		args = append(args, "-p", p)
	}
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+s.Env[k])
	}
	if s.Restart != "" {
		args = append(args, "--restart", s.Restart)
	}
	args = append(args, s.Image)
	return ir.NewCommand(args...)
}

// ParsePlatform parses os/arch[/variant].
func ParsePlatform(s string) (*v1.Platform, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid platform %q: expected os/arch[/variant]", s)
	}
	p := &v1.Platform{OS: parts[0], Architecture: parts[1]}
	if len(parts) == 3 {
		p.Variant = parts[2]
	}
	return p, nil
}

// FormatPlatform renders p the way --platform expects it.
func FormatPlatform(p *v1.Platform) string {
	if p == nil {
		return ""
	}
	s := p.OS + "/" + p.Architecture
	if p.Variant != "" {
		s += "/" + p.Variant
	}
	return s
}

// ParseEnv parses a comma separated KEY=VALUE list.
func ParseEnv(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	env := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid environment entry %q", pair)
		}
		env[k] = v
	}
	return env, nil
}
