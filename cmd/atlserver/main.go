package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlrp/server/internal/config"
	"github.com/atlrp/server/internal/data"
	"github.com/atlrp/server/internal/events"
	"github.com/atlrp/server/internal/exports"
	"github.com/atlrp/server/internal/game"
	"github.com/atlrp/server/internal/persist"
	"github.com/atlrp/server/internal/system"
	"github.com/atlrp/server/internal/world"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfgPath := "config/server.toml"
	if p := os.Getenv("ATL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting",
		zap.String("server", cfg.Server.Name),
		zap.Int("id", cfg.Server.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	if err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	tables, err := data.LoadTables(cfg.Game.DataDir)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}
	log.Info("data tables loaded",
		zap.Int("groups", tables.Groups.Count()),
		zap.Int("jobs", tables.Jobs.Count()))

	var notify world.Notifier = events.NopNotifier{}
	if cfg.Events.Enabled {
		n, err := events.NewAMQPNotifier(cfg.Events.URL, log)
		if err != nil {
			return fmt.Errorf("events: %w", err)
		}
		defer n.Close()
		notify = n
		log.Info("event channel connected")
	}

	repo := persist.NewPlayerRepo(db)
	actors := world.NewActorTable()
	players := world.NewRegistry()
	loader := game.NewLoader(repo, tables, players, actors, notify, log)
	persister := game.NewPersister(repo)

	reg := exports.NewRegistry(players, loader, persister, log)
	defer reg.Close()
	if err := reg.LoadScripts(cfg.Game.ScriptsDir); err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}

	saveTicks := int(cfg.Game.AutosaveInterval / cfg.Game.TickRate)
	if saveTicks < 1 {
		saveTicks = 1
	}
	persistence := system.NewPersistenceSystem(players, persister, log, saveTicks)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Game.TickRate)
	defer ticker.Stop()

	log.Info("game loop started", zap.Duration("tick", cfg.Game.TickRate))

	for {
		select {
		case <-ticker.C:
			persistence.Update(cfg.Game.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			persistence.SaveAllPlayers()
			log.Info("server stopped")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
