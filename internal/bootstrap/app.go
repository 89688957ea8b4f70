package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"chatrewind/internal/ai"
	appsvc "chatrewind/internal/app"
	"chatrewind/internal/config"
	"chatrewind/internal/model"
	sqliteClient "chatrewind/internal/platform/sqlite"
	"chatrewind/internal/repository"
	"chatrewind/internal/store"
)

type App struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *gorm.DB
	Store  *store.ConversationStore
	Turns  *appsvc.TurnService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqliteClient.New(ctx, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.StoreRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	rowRepo := repository.NewRowRepository(db)
	gate := store.NewGate(cfg.Store.GateQueueSize)
	conversationStore := store.NewConversationStore(rowRepo, gate, logger)

	generator := ai.NewTogetherClient(ai.ChatConfig{
		BaseURL:      cfg.LLM.BaseURL,
		APIKey:       cfg.LLM.APIKey,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
		TopP:         cfg.LLM.TopP,
		SystemPrompt: cfg.LLM.SystemPrompt,
	})

	turns := appsvc.NewTurnService(
		conversationStore,
		generator,
		cfg.LLM.Model,
		time.Duration(cfg.LLM.TimeoutSeconds)*time.Second,
		logger,
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Store:     conversationStore,
		Turns:     turns,
		StartedAt: time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Store != nil {
		a.Store.Close()
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level failed: %w", err)
	}

	var logger zerolog.Logger
	if cfg.App.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("app", cfg.App.Name).Logger(), nil
}
