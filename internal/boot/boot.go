// Package boot holds the startup and teardown steps shared by the binaries
// under cmd/.
package boot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/foodapp-backend/pkg/config"
	"github.com/angelmondragon/foodapp-backend/pkg/db"
	"github.com/angelmondragon/foodapp-backend/pkg/instance"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
	"github.com/angelmondragon/foodapp-backend/pkg/metrics"
	"github.com/angelmondragon/foodapp-backend/pkg/migrate"
	"github.com/angelmondragon/foodapp-backend/pkg/redis"
)

type closer struct {
	name string
	fn   func() error
}

// Process is one running binary: its config, its logger and whatever it
// must release before exiting.
type Process struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger

	closers []closer
	exit    func(int)
}

// Start loads .env and the environment and builds the service logger.
// Invalid configuration ends the process.
func Start(name string) *Process {
	p := &Process{
		Name:   name,
		Logger: logger.New(logger.Options{ServiceName: name}),
		exit:   os.Exit,
	}
	if err := godotenv.Load(); err != nil {
		p.Logger.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	p.Must("load config", err)
	cfg.Service.Kind = name
	p.Config = cfg

	p.Logger = logger.New(logger.Options{
		ServiceName: name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	return p
}

// Must stops the process when a startup step failed.
func (p *Process) Must(step string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(context.Background(), step+" failed", err)
	p.Exit(1)
}

// OnExit registers fn to run at Exit. Closers run in reverse order.
func (p *Process) OnExit(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Database connects to postgres and applies the embedded migrations when
// the environment asks for it.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	p.Must("connect database", err)
	p.OnExit("database", client.Close)
	p.Must("run dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Logger, client))
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Must("connect redis", err)
	p.OnExit("redis", client.Close)
	return client
}

// Context is cancelled on SIGINT or SIGTERM and carries the process log fields.
func (p *Process) Context(fields map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	base := map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Name,
		"instance":    instance.GetID(),
	}
	for k, v := range fields {
		base[k] = v
	}
	return p.Logger.WithFields(ctx, base), stop
}

// ServeMetrics exposes the default registry when FOODAPP_WORKER_METRICS_ADDR is set.
func (p *Process) ServeMetrics(ctx context.Context) {
	go func() {
		if err := metrics.Serve(ctx, p.Config.Service.MetricsAddr, prometheus.DefaultGatherer); err != nil {
			p.Logger.Error(ctx, "worker metrics listener stopped", err)
		}
	}()
}

// Exit releases registered resources and ends the process. A failed close
// turns a clean exit into status 1.
func (p *Process) Exit(code int) {
	if err := p.close(); err != nil {
		p.Logger.Error(context.Background(), "error during shutdown", err)
		if code == 0 {
			code = 1
		}
	}
	p.exit(code)
}

func (p *Process) close() error {
	var err error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if cerr := c.fn(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", c.name, cerr))
		}
	}
	p.closers = nil
	return err
}
