package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/errdefs"
	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/provider"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	pingErr    error
	containers []types.Container
	states     map[string]*types.ContainerState
	volumes    []*volume.Volume
	images     []image.Summary
}

func (m *mockAPI) Ping(context.Context) (types.Ping, error) { return types.Ping{}, m.pingErr }

func (m *mockAPI) ContainerList(context.Context, container.ListOptions) ([]types.Container, error) {
	return m.containers, nil
}

func (m *mockAPI) ContainerInspect(_ context.Context, id string) (types.ContainerJSON, error) {
	state, ok := m.states[id]
	if !ok {
		return types.ContainerJSON{}, errdefs.NotFound(errors.New("No such container: " + id))
	}
	return types.ContainerJSON{ContainerJSONBase: &types.ContainerJSONBase{Name: "/" + id, State: state}}, nil
}

func (m *mockAPI) VolumeList(context.Context, volume.ListOptions) (volume.ListResponse, error) {
	return volume.ListResponse{Volumes: m.volumes}, nil
}

func (m *mockAPI) VolumeInspect(_ context.Context, id string) (volume.Volume, error) {
	for _, v := range m.volumes {
		if v.Name == id {
			return *v, nil
		}
	}
	return volume.Volume{}, errdefs.NotFound(errors.New("no such volume"))
}

func (m *mockAPI) ImageList(context.Context, image.ListOptions) ([]image.Summary, error) {
	return m.images, nil
}

func (m *mockAPI) ImageInspectWithRaw(_ context.Context, id string) (types.ImageInspect, []byte, error) {
	for _, img := range m.images {
		for _, tag := range img.RepoTags {
			if tag == id {
				return types.ImageInspect{ID: img.ID}, nil, nil
			}
		}
	}
	return types.ImageInspect{}, nil, errdefs.NotFound(errors.New("no such image"))
}

func newMock() *mockAPI {
	return &mockAPI{
		containers: []types.Container{
			{ID: "abc123", Names: []string{"/web-1"}, Image: "nginx:1.27", State: "running"},
			{ID: "0123456789abcdef", Image: "redis", State: "exited"},
		},
		states: map[string]*types.ContainerState{
			"web-1":  {Status: "running"},
			"worker": {Status: "exited", ExitCode: 2, Error: "oom"},
		},
		volumes: []*volume.Volume{{Name: "data", Driver: "local"}},
		images: []image.Summary{
			{ID: "sha256:aaaabbbbccccdddd", RepoTags: []string{"nginx:1.27"}},
			{ID: "sha256:1111222233334444", RepoTags: []string{"<none>:<none>"}},
		},
	}
}

func TestInventory(t *testing.T) {
	b := NewWithClient(newMock())
	ctx := context.Background()

	inv, err := b.Inventory(ctx, ir.KindContainer, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"web-1", "0123456789ab"}, inv.IDs())
	assert.Equal(t, "running", inv.Resources[0].Status)

	inv, err = b.Inventory(ctx, ir.KindVolume, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"data"}, inv.IDs())

	inv, err = b.Inventory(ctx, ir.KindImage, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"nginx:1.27", "111122223333"}, inv.IDs())

	_, err = b.Inventory(ctx, ir.KindStack, "")
	assert.Error(t, err)
}

func TestExistsAndStatus(t *testing.T) {
	b := NewWithClient(newMock())
	ctx := context.Background()

	exists, err := b.Exists(ctx, ir.KindContainer, "", "web-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = b.Exists(ctx, ir.KindContainer, "", "ghost")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = b.Exists(ctx, ir.KindVolume, "", "data")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = b.Exists(ctx, ir.KindImage, "", "redis:7")
	require.NoError(t, err)
	assert.False(t, exists)

	report, err := b.Status(ctx, ir.KindContainer, "", "worker")
	require.NoError(t, err)
	assert.Equal(t, "exited", report.Status)
	assert.Equal(t, 2, report.ExitCode)
	assert.Equal(t, "oom", report.Reason)

	report, err = b.Status(ctx, ir.KindContainer, "", "ghost")
	require.NoError(t, err)
	assert.Equal(t, ir.StatusDeleted, report.Status)

	_, err = b.Status(ctx, ir.KindVolume, "", "data")
	assert.Error(t, err)
}

func TestPreflight(t *testing.T) {
	m := newMock()
	b := NewWithClient(m)
	assert.NoError(t, b.Preflight(context.Background()))

	m.pingErr = errors.New("Cannot connect to the Docker daemon at unix:///var/run/docker.sock")
	assert.ErrorContains(t, b.Preflight(context.Background()), "Cannot connect")
}

func TestInspect(t *testing.T) {
	b := NewWithClient(newMock())
	ctx := context.Background()

	desc, err := b.Inspect(ctx, ir.KindContainer, "", "worker")
	require.NoError(t, err)
	info, ok := desc.(types.ContainerJSON)
	require.True(t, ok)
	assert.Equal(t, "oom", info.State.Error)

	desc, err = b.Inspect(ctx, ir.KindVolume, "", "data")
	require.NoError(t, err)
	assert.Equal(t, "local", desc.(volume.Volume).Driver)

	desc, err = b.Inspect(ctx, ir.KindImage, "", "nginx:1.27")
	require.NoError(t, err)
	assert.Equal(t, "sha256:aaaabbbbccccdddd", desc.(types.ImageInspect).ID)

	_, err = b.Inspect(ctx, ir.KindContainer, "", "ghost")
	assert.ErrorIs(t, err, provider.ErrNotFound)

	_, err = b.Inspect(ctx, ir.KindStack, "", "demo-app")
	assert.Error(t, err)
}

func TestRunSpec(t *testing.T) {
	spec := RunSpec{
		Name:     "web",
		Image:    "nginx:1.27",
		Ports:    []string{"8080:80", "127.0.0.1:8443:443/tcp"},
		Platform: &v1.Platform{OS: "linux", Architecture: "arm64", Variant: "v8"},
		Env:      map[string]string{"B": "2", "A": "1"},
		Restart:  "unless-stopped",
	}
	require.NoError(t, spec.Validate())
	assert.Equal(t,
		"docker run -d --name web --platform linux/arm64/v8 -p 8080:80 -p 127.0.0.1:8443:443/tcp -e A=1 -e B=2 --restart unless-stopped nginx:1.27",
		spec.Command().String())

	ports, err := spec.ExposedPorts()
	require.NoError(t, err)
	assert.Equal(t, []string{"443/tcp", "80/tcp"}, ports)
}

func TestRunSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec RunSpec
	}{
		{"missing name", RunSpec{Image: "nginx"}},
		{"missing image", RunSpec{Name: "web"}},
		{"bad port", RunSpec{Name: "web", Image: "nginx", Ports: []string{"http:eighty"}}},
		{"bad platform", RunSpec{Name: "web", Image: "nginx", Platform: &v1.Platform{Architecture: "arm64"}}},
		{"bad restart", RunSpec{Name: "web", Image: "nginx", Restart: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.spec.Validate())
		})
	}
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("Linux/AMD64")
	require.NoError(t, err)
	assert.Equal(t, "linux", p.OS)
	assert.Equal(t, "amd64", p.Architecture)
	assert.Empty(t, p.Variant)
	assert.Equal(t, "linux/amd64", FormatPlatform(p))

	p, err = ParsePlatform("linux/arm/v7")
	require.NoError(t, err)
	assert.Equal(t, "linux/arm/v7", FormatPlatform(p))

	_, err = ParsePlatform("linux")
	assert.Error(t, err)
	assert.Empty(t, FormatPlatform(nil))
}

func TestParseEnv(t *testing.T) {
	env, err := ParseEnv("A=1, B=two=2")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two=2"}, env)

	_, err = ParseEnv("novalue")
	assert.Error(t, err)

	env, err = ParseEnv("")
	assert.NoError(t, err)
	assert.Nil(t, env)
}
