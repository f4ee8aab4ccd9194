// Package config loads infrapilot settings from a YAML or PKL file, applies
// defaults and environment overrides, and validates the result.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Backend modes for the AWS kinds.
const (
	ModeCLI     = "cli"
	ModeSDK     = "sdk"
	ModeOffline = "offline"
)

// Environment variables read by Load.
const (
	EnvRegion   = "AWS_REGION"
	EnvProfile  = "AWS_PROFILE"
	EnvLogLevel = "INFRAPILOT_LOG_LEVEL"
	EnvBackend  = "INFRAPILOT_BACKEND"
	EnvDryRun   = "INFRAPILOT_DRY_RUN"
	EnvToolkits = "INFRAPILOT_TOOLKITS"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "infrapilot.yaml"

// Config is the root configuration structure.
type Config struct {
	Region   string         `yaml:"region" pkl:"region" validate:"required"`
	DryRun   bool           `yaml:"dry_run" pkl:"dry_run"`
	Toolkits []string       `yaml:"toolkits" pkl:"toolkits" validate:"dive,oneof=aws docker"`
	Log      LogConfig      `yaml:"log" pkl:"log"`
	AWS      AWSConfig      `yaml:"aws" pkl:"aws"`
	Docker   DockerConfig   `yaml:"docker" pkl:"docker"`
	Poll     PollConfig     `yaml:"poll" pkl:"poll"`
	Delete   DeleteConfig   `yaml:"delete" pkl:"delete"`
	Deploy   DeployConfig   `yaml:"deploy" pkl:"deploy"`
	Template TemplateConfig `yaml:"template" pkl:"template"`
	Journal  JournalConfig  `yaml:"journal" pkl:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics" pkl:"metrics"`
	Offline  OfflineConfig  `yaml:"offline" pkl:"offline"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" pkl:"level" validate:"oneof=debug info warn warning error"`
}

// AWSConfig selects how AWS kinds are queried.
type AWSConfig struct {
	Mode    string `yaml:"mode" pkl:"mode" validate:"oneof=cli sdk offline"`
	Profile string `yaml:"profile" pkl:"profile"`
	Binary  string `yaml:"binary" pkl:"binary"`
}

// DockerConfig holds docker daemon settings.
type DockerConfig struct {
	Binary string `yaml:"binary" pkl:"binary"`
	Host   string `yaml:"host" pkl:"host"`
}

// PollConfig holds status poller settings.
type PollConfig struct {
	Interval    string `yaml:"interval" pkl:"interval" validate:"required"`
	MaxAttempts int    `yaml:"max_attempts" pkl:"max_attempts" validate:"min=1"`
}

// IntervalDuration returns the parsed poll interval. Load has already
// rejected unparsable values.
func (p PollConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(p.Interval)
	return d
}

// DeleteConfig holds delete action settings.
type DeleteConfig struct {
	Wait bool `yaml:"wait" pkl:"wait"`
}

// DeployConfig holds stack deploy settings.
type DeployConfig struct {
	TemplateFile string   `yaml:"template_file" pkl:"template_file" validate:"required"`
	DefaultStack string   `yaml:"default_stack" pkl:"default_stack" validate:"required"`
	Capabilities []string `yaml:"capabilities" pkl:"capabilities"`
}

// TemplateConfig holds template post-processing settings.
type TemplateConfig struct {
	BucketPrefix string `yaml:"bucket_prefix" pkl:"bucket_prefix" validate:"required"`
	SuffixLength int    `yaml:"suffix_length" pkl:"suffix_length" validate:"min=1,max=16"`
}

// JournalConfig holds action journal settings.
type JournalConfig struct {
	Path     string `yaml:"path" pkl:"path"`
	Disabled bool   `yaml:"disabled" pkl:"disabled"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" pkl:"textfile"`
}

// OfflineConfig configures the fixture-backed offline backend.
type OfflineConfig struct {
	Fixture string `yaml:"fixture" pkl:"fixture"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Region: "us-east-1",
		Log:    LogConfig{Level: "info"},
		AWS:    AWSConfig{Mode: ModeCLI},
		Poll:   PollConfig{Interval: "10s", MaxAttempts: 60},
		Deploy: DeployConfig{
			TemplateFile: "template.yaml",
			DefaultStack: "MyStack",
			Capabilities: []string{"CAPABILITY_NAMED_IAM"},
		},
		Template: TemplateConfig{BucketPrefix: "cf-bucket", SuffixLength: 6},
		Journal:  JournalConfig{Path: filepath.Join(".infrapilot", "journal.log")},
	}
}

// Load reads path (YAML, or PKL when the extension is .pkl), fills unset
// fields from Default, applies environment overrides and validates. An empty
// path loads DefaultFile if it exists and the defaults otherwise.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		var (
			file *Config
			err  error
		)
		if strings.EqualFold(filepath.Ext(path), ".pkl") {
			file, err = loadPkl(ctx, path)
		} else {
			file, err = loadYAML(path)
		}
		if err != nil {
			return nil, err
		}
		merge(cfg, file)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// merge copies every set field of src onto dst.
func merge(dst, src *Config) {
	setString(&dst.Region, src.Region)
	dst.DryRun = dst.DryRun || src.DryRun
	if len(src.Toolkits) > 0 {
		dst.Toolkits = src.Toolkits
	}
	setString(&dst.Log.Level, src.Log.Level)
	setString(&dst.AWS.Mode, src.AWS.Mode)
	setString(&dst.AWS.Profile, src.AWS.Profile)
	setString(&dst.AWS.Binary, src.AWS.Binary)
	setString(&dst.Docker.Binary, src.Docker.Binary)
	setString(&dst.Docker.Host, src.Docker.Host)
	setString(&dst.Poll.Interval, src.Poll.Interval)
	if src.Poll.MaxAttempts != 0 {
		dst.Poll.MaxAttempts = src.Poll.MaxAttempts
	}
	dst.Delete.Wait = dst.Delete.Wait || src.Delete.Wait
	setString(&dst.Deploy.TemplateFile, src.Deploy.TemplateFile)
	setString(&dst.Deploy.DefaultStack, src.Deploy.DefaultStack)
	if len(src.Deploy.Capabilities) > 0 {
		dst.Deploy.Capabilities = src.Deploy.Capabilities
	}
	setString(&dst.Template.BucketPrefix, src.Template.BucketPrefix)
	if src.Template.SuffixLength != 0 {
		dst.Template.SuffixLength = src.Template.SuffixLength
	}
	setString(&dst.Journal.Path, src.Journal.Path)
	dst.Journal.Disabled = dst.Journal.Disabled || src.Journal.Disabled
	setString(&dst.Metrics.Textfile, src.Metrics.Textfile)
	setString(&dst.Offline.Fixture, src.Offline.Fixture)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Region, os.Getenv(EnvRegion))
	setString(&cfg.AWS.Profile, os.Getenv(EnvProfile))
	setString(&cfg.Log.Level, strings.ToLower(os.Getenv(EnvLogLevel)))
	setString(&cfg.AWS.Mode, strings.ToLower(os.Getenv(EnvBackend)))
	if v := os.Getenv(EnvDryRun); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s=%q: %w", EnvDryRun, v, err)
		}
		cfg.DryRun = dry
	}
	if v := os.Getenv(EnvToolkits); v != "" {
		cfg.Toolkits = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				cfg.Toolkits = append(cfg.Toolkits, name)
			}
		}
	}
	return nil
}

// Enabled reports whether the named toolkit is switched on. No toolkits
// means all of them.
func (c *Config) Enabled(toolkit string) bool {
	return len(c.Toolkits) == 0 || slices.Contains(c.Toolkits, toolkit)
}

var validate = validator.New()

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	d, err := time.ParseDuration(c.Poll.Interval)
	if err != nil {
		return fmt.Errorf("invalid config: poll.interval %q: %w", c.Poll.Interval, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid config: poll.interval must be positive (got %s)", c.Poll.Interval)
	}
	if c.AWS.Mode == ModeOffline && c.Offline.Fixture == "" {
		return fmt.Errorf("invalid config: aws.mode offline requires offline.fixture")
	}
	return nil
}
