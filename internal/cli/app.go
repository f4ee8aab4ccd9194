package cli

import (
	"context"

	"github.com/infrapilot/infrapilot/internal/config"
	"github.com/infrapilot/infrapilot/internal/engine"
	"github.com/infrapilot/infrapilot/internal/executor"
	"github.com/infrapilot/infrapilot/internal/journal"
	"github.com/infrapilot/infrapilot/internal/logging"
	"github.com/infrapilot/infrapilot/internal/metrics"
	"github.com/infrapilot/infrapilot/internal/provider"
	"github.com/infrapilot/infrapilot/providers/aws"
	"github.com/infrapilot/infrapilot/providers/awscli"
	"github.com/infrapilot/infrapilot/providers/docker"
	"github.com/infrapilot/infrapilot/providers/null"
)

// App holds the clients built once per process.
type App struct {
	Config   *config.Config
	Registry *provider.Registry
	Metrics  *metrics.Metrics
	Journal  *journal.Journal

	// runner executes state-changing commands; queries never go through it
	// in dry-run mode.
	runner executor.Runner
}

// loadApp loads configuration, applies flag overrides, initializes logging
// and builds the backends.
func loadApp(ctx context.Context, g *globals) (*App, error) {
	cfg, err := config.Load(ctx, g.configPath)
	if err != nil {
		return nil, err
	}
	if g.region != "" {
		cfg.Region = g.region
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
	if g.dryRun {
		cfg.DryRun = true
	}
	if g.metricsFile != "" {
		cfg.Metrics.Textfile = g.metricsFile
	}
	if g.journalPath != "" {
		cfg.Journal.Path = g.journalPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Init(cfg.Log.Level)
	return NewApp(ctx, cfg)
}

// NewApp builds the backend registry and runner selected by cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Registry: provider.NewRegistry(),
		Metrics:  metrics.New(),
	}
	if !cfg.Journal.Disabled {
		app.Journal = journal.New(cfg.Journal.Path)
	}

	if cfg.AWS.Mode == config.ModeOffline {
		fixture, err := null.LoadFixture(cfg.Offline.Fixture)
		if err != nil {
			return nil, err
		}
		for _, name := range []string{"aws", "docker"} {
			if cfg.Enabled(name) {
				app.Registry.Register(null.New(name, fixture))
			}
		}
		app.runner = null.NewRunner(fixture)
		logging.Debug("using offline backends", "fixture", cfg.Offline.Fixture, "backends", app.Registry.Names())
		return app, nil
	}

	live := liveRunner(cfg)
	if cfg.Enabled("aws") {
		switch cfg.AWS.Mode {
		case config.ModeSDK:
			b, err := aws.New(ctx, aws.Config{Region: cfg.Region, Profile: cfg.AWS.Profile})
			if err != nil {
				return nil, err
			}
			app.Registry.Register(b)
		default:
			app.Registry.Register(awscli.New(live, awscli.Config{Profile: cfg.AWS.Profile}))
		}
	}

	if cfg.Enabled("docker") {
		d, err := docker.New(docker.Config{Host: cfg.Docker.Host})
		if err != nil {
			return nil, err
		}
		app.Registry.Register(d)
	}

	app.runner = live
	if cfg.DryRun {
		app.runner = null.NewRunner(nil)
	}
	logging.Debug("using live backends", "backends", app.Registry.Names(), "dry_run", cfg.DryRun)
	return app, nil
}

func liveRunner(cfg *config.Config) *executor.ExecRunner {
	r := &executor.ExecRunner{Programs: make(map[string]string)}
	if cfg.AWS.Binary != "" {
		r.Programs["aws"] = cfg.AWS.Binary
	}
	if cfg.Docker.Binary != "" {
		r.Programs["docker"] = cfg.Docker.Binary
	}
	if cfg.AWS.Profile != "" {
		r.Env = append(r.Env, "AWS_PROFILE="+cfg.AWS.Profile)
	}
	if cfg.Docker.Host != "" {
		r.Env = append(r.Env, "DOCKER_HOST="+cfg.Docker.Host)
	}
	return r
}

// Engine builds an engine over the app's clients. tweak may adjust the
// options derived from configuration.
func (a *App) Engine(tweak ...func(*engine.Options)) *engine.Engine {
	cfg := a.Config
	opts := engine.DefaultOptions()
	opts.Region = cfg.Region
	opts.DeleteWait = cfg.Delete.Wait
	opts.PollInterval = cfg.Poll.IntervalDuration()
	opts.PollAttempts = cfg.Poll.MaxAttempts
	opts.TemplateFile = cfg.Deploy.TemplateFile
	opts.DefaultStack = cfg.Deploy.DefaultStack
	opts.Capabilities = cfg.Deploy.Capabilities
	opts.BucketPrefix = cfg.Template.BucketPrefix
	opts.SuffixLength = cfg.Template.SuffixLength
	opts.Toolkits = cfg.Toolkits
	// Offline mode simulates state changes on the fixture, so only a live
	// dry run has nothing to wait for.
	opts.DryRun = cfg.DryRun && cfg.AWS.Mode != config.ModeOffline
	for _, fn := range tweak {
		fn(&opts)
	}

	extra := []engine.Option{engine.WithMetrics(a.Metrics)}
	if a.Journal != nil {
		extra = append(extra, engine.WithJournal(a.Journal))
	}
	return engine.New(a.Registry, executor.New(a.runner), opts, extra...)
}

// Close flushes metrics to the configured textfile.
func (a *App) Close() error {
	if a.Config.Metrics.Textfile == "" {
		return nil
	}
	return a.Metrics.WriteTextfile(a.Config.Metrics.Textfile)
}
