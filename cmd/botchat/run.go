package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/botchat/internal/bot"
	"github.com/xaenox/botchat/internal/delivery"
	"github.com/xaenox/botchat/internal/generator"
	"github.com/xaenox/botchat/internal/models"
	"github.com/xaenox/botchat/internal/scheduler"
	"github.com/xaenox/botchat/internal/sim"
	"github.com/xaenox/botchat/internal/storage"
	"github.com/xaenox/botchat/internal/timer"
	"github.com/xaenox/botchat/pkg/config"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var console bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, console)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	cmd.Flags().BoolVar(&console, "console", false, "chat from the terminal even if a Telegram token is set")
	return cmd
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newStorage(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		logger.Info("Using SQLite storage", zap.String("path", cfg.Path))
		return storage.NewSQLiteStorage(cfg.Path, logger)
	case "postgres":
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Host))
		return storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func newEngine(cfg *config.Config, store storage.Storage, logger *zap.Logger) *sim.Engine {
	guard := storage.NewGuard(store)
	queue := scheduler.NewQueue()

	sched := scheduler.New(queue, newRand(cfg.Sim.Seed), scheduler.Options{
		DampingFactor:  cfg.Sim.DampingFactor,
		SampleInterval: cfg.Sim.AmbientInterval,
		ReactiveBots:   cfg.Sim.ReactiveBots,
		ManualDelay:    cfg.Sim.ManualDelay,
	}, logger.Named("scheduler"))

	// Generation and farewells only run inside a storage update, so they
	// can share one source.
	seed := cfg.Sim.Seed
	if seed != 0 {
		seed++
	}
	deliveryRand := newRand(seed)
	gen := generator.NewOpenAIGenerator(generator.OpenAIOptions{
		BaseURL:      cfg.OpenAI.BaseURL,
		MaxTokens:    cfg.OpenAI.MaxTokens,
		Temperature:  cfg.OpenAI.Temperature,
		MaxSentences: cfg.Sim.MaxSentences,
		HistoryTurns: cfg.Sim.HistoryTurns,
		Timeout:      cfg.OpenAI.Timeout,
	}, generator.NewLocalGenerator(deliveryRand, cfg.Sim.MaxSentences), logger.Named("generator"))

	dl := delivery.New(queue, guard, gen, deliveryRand, delivery.Options{
		FarewellProbability: cfg.Sim.FarewellProbability,
	}, logger.Named("delivery"))

	loop := timer.New(clockwork.NewRealClock(), logger.Named("timer"))

	return sim.New(guard, queue, sched, dl, loop, sim.Options{
		TickInterval:    cfg.Sim.TickInterval,
		AmbientInterval: cfg.Sim.AmbientInterval,
	}, logger)
}

func run(ctx context.Context, configPath string, console bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	store, err := newStorage(cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", zap.Error(err))
		return err
	}
	defer store.Close()

	engine := newEngine(cfg, store, logger)

	// A configured key turns on remote generation for a fresh state.
	if cfg.OpenAI.APIKey != "" {
		st, err := engine.Snapshot(ctx)
		if err != nil {
			return err
		}
		if st.Settings.APIKey == "" {
			on := true
			if _, err := engine.SetSettings(ctx, models.SettingsPatch{
				UseOpenAI: &on,
				APIKey:    &cfg.OpenAI.APIKey,
				Model:     &cfg.OpenAI.Model,
			}); err != nil {
				return err
			}
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() { errs <- engine.Run(ctx) }()

	if cfg.Telegram.Token != "" && !console {
		b, err := bot.New(cfg.Telegram.Token, cfg.Telegram.ChatID, engine, logger.Named("telegram"))
		if err != nil {
			logger.Error("Failed to create Telegram relay", zap.Error(err))
			return err
		}
		go func() { errs <- b.Start(ctx) }()
	} else {
		go func() { errs <- runConsole(ctx, engine, os.Stdin, os.Stdout) }()
	}

	select {
	case <-ctx.Done():
	case err := <-errs:
		stop()
		if err != nil && ctx.Err() == nil {
			return err
		}
	}
	logger.Info("Shutting down")
	return nil
}
