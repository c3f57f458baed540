// Command registryd runs the service registry daemon: the HTTP registration
// and lookup API, the periodic stale-instance sweeper, and the health
// endpoints the platform's load balancers probe.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campushq/corekit/component"
	"github.com/campushq/corekit/config"
	"github.com/campushq/corekit/health"
	"github.com/campushq/corekit/logger"
	"github.com/campushq/corekit/observability"
	"github.com/campushq/corekit/registry"
	"github.com/campushq/corekit/server"
)

type observabilityConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

type registrydConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Registry      registry.Config     `yaml:"registry" mapstructure:"registry"`
	SweepInterval time.Duration       `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	Server        server.Config       `yaml:"server" mapstructure:"server"`
	Observability observabilityConfig `yaml:"observability" mapstructure:"observability"`
}

func (c *registrydConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "registryd"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Registry.ApplyDefaults()
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.Server.Host == "" {
		c.Server.Host = c.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = c.Port
	}
	c.Server.ApplyDefaults()
}

func (c *registrydConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	return c.Server.Validate()
}

func main() {
	var cfg registrydConfig
	if err := config.Load("registryd", &cfg); err != nil {
		logger.NewDefault("registryd").Fatal("configuration invalid", logger.ErrorFields("load", err))
	}

	logger.Init(cfg.Logging, cfg.Name)
	log := logger.GetGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observability.RegistryMetrics
	if cfg.Observability.Enabled {
		meterCfg := observability.DefaultMeterConfig(cfg.Name)
		meterCfg.ServiceVersion = cfg.Version
		meterCfg.Environment = cfg.Environment
		if cfg.Observability.Endpoint != "" {
			meterCfg.Endpoint = cfg.Observability.Endpoint
		}
		mp, err := observability.InitMeter(ctx, meterCfg)
		if err != nil {
			log.Fatal("meter init failed", logger.ErrorFields("observability", err))
		}
		defer func() { _ = mp.Shutdown(context.Background()) }()

		tracerCfg := observability.DefaultTracerConfig(cfg.Name)
		tracerCfg.ServiceVersion = cfg.Version
		tracerCfg.Environment = cfg.Environment
		if cfg.Observability.Endpoint != "" {
			tracerCfg.Endpoint = cfg.Observability.Endpoint
		}
		tp, err := observability.InitTracer(ctx, tracerCfg)
		if err != nil {
			log.Fatal("tracer init failed", logger.ErrorFields("observability", err))
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()

		metrics, err = observability.NewRegistryMetrics(observability.Meter(cfg.Name))
		if err != nil {
			log.Fatal("metrics init failed", logger.ErrorFields("observability", err))
		}
	}

	reg := registry.NewInMemory(cfg.Registry, log)
	sweeper := registry.NewSweeper(reg, cfg.SweepInterval, log).WithMetrics(metrics)

	checks := health.NewManager(log)
	checks.RegisterCheck("memory", health.MemoryCheck(0), health.CheckConfig{})
	checks.RegisterCheck("disk", health.DiskCheck("/", 0), health.CheckConfig{})

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()
	registry.NewHandler(reg, log).WithMetrics(metrics).RegisterRoutes(srv.GinEngine())
	health.NewEndpoint(checks, cfg.Version).RegisterRoutes(srv.GinEngine())

	components := []component.Component{sweeper, srv}
	for _, c := range components {
		if err := c.Start(ctx); err != nil {
			log.Fatal("component failed to start", logger.Fields(
				logger.FieldComponent, c.Name(),
				logger.FieldError, err.Error(),
			))
		}
	}

	log.Info("registryd started", logger.Fields(
		"addr", srv.Addr(),
		"environment", cfg.Environment,
		"sweep_interval", cfg.SweepInterval.String(),
	))

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(components) - 1; i >= 0; i-- {
		if err := components[i].Stop(shutdownCtx); err != nil {
			log.Error("component failed to stop", logger.Fields(
				logger.FieldComponent, components[i].Name(),
				logger.FieldError, err.Error(),
			))
		}
	}
	log.Info("registryd stopped")
}
