// Package docker answers container, volume and image queries through the
// Docker Engine API.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/provider"
)

// API defines the Engine API operations used by the backend.
type API interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeInspect(ctx context.Context, volumeID string) (volume.Volume, error)
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
}

// Config configures the Engine API client.
type Config struct {
	// Host overrides DOCKER_HOST, e.g. unix:///var/run/docker.sock.
	Host string
}

// Backend queries the Docker daemon.
type Backend struct {
	client API
}

// New builds a client from the environment with API version negotiation.
func New(cfg Config) (*Backend, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return NewWithClient(cli), nil
}

// NewWithClient returns a backend using api.
func NewWithClient(api API) *Backend {
	return &Backend{client: api}
}

func (b *Backend) Name() string { return "docker" }

func (b *Backend) Kinds() []ir.Kind {
	return []ir.Kind{ir.KindContainer, ir.KindVolume, ir.KindImage}
}

// Preflight pings the daemon.
func (b *Backend) Preflight(ctx context.Context) error {
	if _, err := b.client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach Docker daemon: %w", err)
	}
	return nil
}

// Inventory lists resources of kind. Docker resources are not regional.
func (b *Backend) Inventory(ctx context.Context, kind ir.Kind, _ string) (*ir.Inventory, error) {
	inv := &ir.Inventory{Kind: kind}

	switch kind {
	case ir.KindContainer:
		containers, err := b.client.ContainerList(ctx, container.ListOptions{All: true})
		if err != nil {
			return nil, fmt.Errorf("failed to list containers: %w", err)
		}
		for _, c := range containers {
			inv.Resources = append(inv.Resources, &ir.ResourceDescriptor{
				ID:     containerName(c),
				Kind:   kind,
				Type:   c.Image,
				Status: c.State,
				Tags:   c.Labels,
			})
		}
	case ir.KindVolume:
		resp, err := b.client.VolumeList(ctx, volume.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list volumes: %w", err)
		}
		for _, v := range resp.Volumes {
			inv.Resources = append(inv.Resources, &ir.ResourceDescriptor{
				ID:   v.Name,
				Kind: kind,
				Type: v.Driver,
				Tags: v.Labels,
			})
		}
	case ir.KindImage:
		images, err := b.client.ImageList(ctx, image.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list images: %w", err)
		}
		for _, img := range images {
			inv.Resources = append(inv.Resources, &ir.ResourceDescriptor{
				ID:   imageName(img),
				Kind: kind,
				Tags: img.Labels,
			})
		}
	default:
		return nil, fmt.Errorf("docker backend does not serve %s resources", kind)
	}
	return inv, nil
}

func (b *Backend) Exists(ctx context.Context, kind ir.Kind, _ string, id string) (bool, error) {
	var err error
	switch kind {
	case ir.KindContainer:
		_, err = b.client.ContainerInspect(ctx, id)
	case ir.KindVolume:
		_, err = b.client.VolumeInspect(ctx, id)
	case ir.KindImage:
		_, _, err = b.client.ImageInspectWithRaw(ctx, id)
	default:
		return false, fmt.Errorf("docker backend does not serve %s resources", kind)
	}
	return provider.Found(notFound(err))
}

// Status reports a container's state. Only containers are asynchronous.
func (b *Backend) Status(ctx context.Context, kind ir.Kind, _ string, id string) (*ir.StatusReport, error) {
	if kind != ir.KindContainer {
		return nil, fmt.Errorf("%s resources have no asynchronous status", kind)
	}
	info, err := b.client.ContainerInspect(ctx, id)
	if err != nil {
		return provider.DeletedOr(notFound(err))
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return &ir.StatusReport{}, nil
	}
	return &ir.StatusReport{
		Status:   info.State.Status,
		Reason:   info.State.Error,
		ExitCode: info.State.ExitCode,
	}, nil
}

// Inspect returns the Engine API description of one container, volume or
// image, the same document docker inspect prints.
func (b *Backend) Inspect(ctx context.Context, kind ir.Kind, _ string, id string) (any, error) {
	switch kind {
	case ir.KindContainer:
		info, err := b.client.ContainerInspect(ctx, id)
		if err != nil {
			return nil, notFound(err)
		}
		return info, nil
	case ir.KindVolume:
		v, err := b.client.VolumeInspect(ctx, id)
		if err != nil {
			return nil, notFound(err)
		}
		return v, nil
	case ir.KindImage:
		img, raw, err := b.client.ImageInspectWithRaw(ctx, id)
		if err != nil {
			return nil, notFound(err)
		}
		if len(raw) > 0 {
			return json.RawMessage(raw), nil
		}
		return img, nil
	}
	return nil, fmt.Errorf("docker backend does not serve %s resources", kind)
}

func notFound(err error) error {
	if err != nil && client.IsErrNotFound(err) {
		return fmt.Errorf("%w: %v", provider.ErrNotFound, err)
	}
	return err
}

func containerName(c types.Container) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	return shortID(c.ID)
}

func imageName(img image.Summary) string {
	for _, tag := range img.RepoTags {
		if tag != "<none>:<none>" {
			return tag
		}
	}
	return shortID(img.ID)
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
