package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvRegion, EnvProfile, EnvLogLevel, EnvBackend, EnvDryRun, EnvToolkits} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, ModeCLI, cfg.AWS.Mode)
	assert.Equal(t, 10*time.Second, cfg.Poll.IntervalDuration())
	assert.Equal(t, 60, cfg.Poll.MaxAttempts)
	assert.Equal(t, "MyStack", cfg.Deploy.DefaultStack)
	assert.Equal(t, []string{"CAPABILITY_NAMED_IAM"}, cfg.Deploy.Capabilities)
	assert.Equal(t, "cf-bucket", cfg.Template.BucketPrefix)
	assert.False(t, cfg.Delete.Wait)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "infrapilot.yaml", `
region: eu-west-1
log:
  level: debug
aws:
  mode: sdk
  profile: staging
poll:
  interval: 2s
  max_attempts: 5
delete:
  wait: true
template:
  bucket_prefix: team-data
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ModeSDK, cfg.AWS.Mode)
	assert.Equal(t, "staging", cfg.AWS.Profile)
	assert.Equal(t, 2*time.Second, cfg.Poll.IntervalDuration())
	assert.Equal(t, 5, cfg.Poll.MaxAttempts)
	assert.True(t, cfg.Delete.Wait)
	assert.Equal(t, "team-data", cfg.Template.BucketPrefix)
	assert.Equal(t, 6, cfg.Template.SuffixLength)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "infrapilot.yaml", "region: eu-west-1\noffline:\n  fixture: fixture.yaml\n")
	t.Setenv(EnvRegion, "ap-south-1")
	t.Setenv(EnvProfile, "ops")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvBackend, "OFFLINE")
	t.Setenv(EnvDryRun, "true")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg.Region)
	assert.Equal(t, "ops", cfg.AWS.Profile)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ModeOffline, cfg.AWS.Mode)
	assert.True(t, cfg.DryRun)
}

func TestToolkits(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "infrapilot.yaml", "toolkits: [docker]\n")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"docker"}, cfg.Toolkits)
	assert.True(t, cfg.Enabled("docker"))
	assert.False(t, cfg.Enabled("aws"))

	t.Setenv(EnvToolkits, " AWS , docker,")
	cfg, err = Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"aws", "docker"}, cfg.Toolkits)

	assert.True(t, Default().Enabled("aws"))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		errMsg  string
	}{
		{name: "bad yaml", content: "region: [", errMsg: "parse config"},
		{name: "unknown mode", content: "aws:\n  mode: carrier-pigeon\n", errMsg: "AWS.Mode"},
		{name: "bad interval", content: "poll:\n  interval: soon\n", errMsg: "poll.interval"},
		{name: "negative interval", content: "poll:\n  interval: -1s\n", errMsg: "must be positive"},
		{name: "offline without fixture", content: "aws:\n  mode: offline\n", errMsg: "offline.fixture"},
		{name: "bad dry run env", content: "", env: map[string]string{EnvDryRun: "maybe"}, errMsg: EnvDryRun},
		{name: "unknown toolkit", content: "toolkits: [aws, kubernetes]\n", errMsg: "Toolkits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, "infrapilot.yaml", tt.content)
			_, err := Load(context.Background(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
