package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codelore/codelore/db"
	"github.com/codelore/codelore/internal/ai"
	"github.com/codelore/codelore/internal/commits"
	"github.com/codelore/codelore/internal/config"
	"github.com/codelore/codelore/internal/database"
	"github.com/codelore/codelore/internal/gitsource"
	"github.com/codelore/codelore/internal/indexer"
	"github.com/codelore/codelore/internal/log"
	"github.com/codelore/codelore/internal/meeting"
	"github.com/codelore/codelore/internal/qa"
	"github.com/codelore/codelore/internal/store"
)

// app bundles the wired components shared by the serve and index commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
	store   *store.Store
	ai      *ai.Client
	git     *gitsource.Client
	indexer *indexer.Indexer
	qa      *qa.Service
	poller  *commits.Poller
	meeting *meeting.Processor // nil without an AssemblyAI key
}

// setup loads configuration, runs migrations and wires every component.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{JSON: true})

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	st, err := store.New(pool, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	aiClient, err := ai.NewClient(ctx, ai.Options{
		APIKey:        cfg.GeminiAPIKey,
		ChatModel:     cfg.ChatModel,
		EmbedderModel: cfg.EmbedderModel,
		VectorDim:     cfg.VectorDim,
		MinInterval:   cfg.AIMinInterval,
		Retry: ai.RetryConfig{
			MaxRetries:      cfg.AIMaxRetries,
			InitialInterval: cfg.AIRetryDelay,
			MaxInterval:     cfg.AIMaxRetryWait,
		},
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating AI client: %w", err)
	}

	git := gitsource.NewClient(cfg.GitHubToken, logger)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		store:   st,
		ai:      aiClient,
		git:     git,
		indexer: indexer.New(git, aiClient, st, logger),
		qa:      qa.New(aiClient, st, logger),
		poller:  commits.New(git, aiClient, st, logger),
	}

	if cfg.AssemblyAIKey != "" {
		transcriber, err := meeting.NewAssemblyAI(cfg.AssemblyAIKey)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating transcriber: %w", err)
		}
		a.meeting = meeting.New(transcriber, st, logger)
	} else {
		logger.Info("no AssemblyAI key configured, meeting processing disabled")
	}

	return a, nil
}

func (a *app) close() {
	a.pool.Close()
}
