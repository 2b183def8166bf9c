// Package core assembles the assistant: storage, models, memory, skills,
// the background loops and the HTTP gateway, in dependency order.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/junoproject/juno/internal/config"
	"github.com/junoproject/juno/internal/events"
	"github.com/junoproject/juno/internal/executor"
	"github.com/junoproject/juno/internal/gateway"
	"github.com/junoproject/juno/internal/heartbeat"
	"github.com/junoproject/juno/internal/memory"
	"github.com/junoproject/juno/internal/models"
	"github.com/junoproject/juno/internal/personality"
	"github.com/junoproject/juno/internal/pipeline"
	"github.com/junoproject/juno/internal/proactive"
	"github.com/junoproject/juno/internal/router"
	"github.com/junoproject/juno/internal/scheduler"
	"github.com/junoproject/juno/internal/skills"
	"github.com/junoproject/juno/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Core holds every long-lived component of the assistant.
type Core struct {
	Config      *config.Config
	Bus         *events.Bus
	Store       *store.Store
	Gateway     *models.Gateway
	Memory      *memory.Memory
	Personality *personality.Manager
	Skills      *skills.Registry
	Pipeline    *pipeline.Pre
	Router      *router.Router
	Executor    *executor.Executor
	Proactive   *proactive.Engine
	Heartbeat   *heartbeat.Heartbeat
	Scheduler   *scheduler.Scheduler
	Server      *gateway.Server

	logger *slog.Logger
}

// New builds the full system from configuration. Nothing is running yet;
// call Run to start the loops and the server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}

	for _, dir := range []string{config.AgentHome(), config.WorkspacePath(), config.SkillsPath(), config.ScreenshotsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	bus := events.NewBus(cfg.Events.BufferSize)

	st, err := store.Open(config.DBPath())
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	gw := models.NewGateway(cfg.Models)

	mem := memory.New(memory.Config{
		DB:           st.DB(),
		Embedder:     gw,
		Generator:    gw,
		Logger:       logger,
		SearchWindow: cfg.Memory.SearchWindow,
	})

	pers := personality.Load(config.PersonalityPath(), logger)

	skillsDir := cfg.Skills.Dir
	if skillsDir == "" {
		skillsDir = config.SkillsPath()
	}
	reg, err := skills.NewRegistry(ctx, skills.Config{
		Dir:       skillsDir,
		Workspace: config.WorkspacePath(),
		Searcher:  mem.SearchText,
		Generator: gw,
		Usage:     st,
		Events:    bus,
		Enabled:   cfg.Skills.Enabled,
		Logger:    logger,
	})
	if err != nil {
		st.Close()
		bus.Close()
		return nil, fmt.Errorf("init skills: %w", err)
	}

	pre := pipeline.NewPre(gw, logger)
	rtr := router.New(cfg.Routing.Mode, cfg.Models.Background, gw.Installed)
	exec := executor.New(gw, reg, logger)
	pro := proactive.New(mem, gw, logger)

	hb := heartbeat.New(heartbeat.Config{
		Store:     st,
		Executor:  exec,
		Router:    rtr,
		Memory:    mem,
		Skills:    reg,
		Generator: gw,
		Bus:       bus,
		Logger:    logger,
		Settings:  cfg.Heartbeat,
	})

	sched, err := scheduler.New(cfg.Cron, st, bus, logger)
	if err != nil {
		st.Close()
		bus.Close()
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	srv := gateway.NewServer(gateway.Config{
		Bus:         bus,
		Store:       st,
		Memory:      mem,
		Personality: pers,
		Proactive:   pro,
		Pipeline:    pre,
		Router:      rtr,
		Executor:    exec,
		Heartbeat:   hb,
		Generator:   gw,
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Logger:      logger,
	})

	return &Core{
		Config:      cfg,
		Bus:         bus,
		Store:       st,
		Gateway:     gw,
		Memory:      mem,
		Personality: pers,
		Skills:      reg,
		Pipeline:    pre,
		Router:      rtr,
		Executor:    exec,
		Proactive:   pro,
		Heartbeat:   hb,
		Scheduler:   sched,
		Server:      srv,
		logger:      logger.With("component", "core"),
	}, nil
}

// Run starts the background loops and serves HTTP until ctx is cancelled
// or the server fails. Shutdown is the reverse of startup.
func (c *Core) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.Heartbeat.Run(runCtx)
	go c.Scheduler.Run(runCtx)

	c.logger.Info("assistant ready",
		"assistant", c.Personality.Name(),
		"configured", c.Personality.Configured(),
		"skills", len(c.Skills.Names()))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Server.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			runErr = err
		}
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := c.Server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	c.Bus.Close()
	if err := c.Store.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
