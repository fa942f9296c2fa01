// Package engine wires every component into the caller boundary the
// omitted HTTP/CLI layer uses (spec §6).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	appcontext "github.com/thebtf/engram/internal/context"
	"github.com/thebtf/engram/internal/config"
	"github.com/thebtf/engram/internal/db/sqlite"
	"github.com/thebtf/engram/internal/embedding"
	"github.com/thebtf/engram/internal/maintenance"
	"github.com/thebtf/engram/internal/search"
	"github.com/thebtf/engram/pkg/models"
)

// Engine is the process-wide facade over every component (C1-C12).
type Engine struct {
	store         *sqlite.Store
	observations  *sqlite.ObservationWriter
	summaries     *sqlite.SummaryStore
	prompts       *sqlite.PromptStore
	sessions      *sqlite.SessionStore
	checkpoints   *sqlite.CheckpointStore
	aliases       *sqlite.AliasStore
	vector        *sqlite.VectorSearcher
	lexical       *sqlite.LexicalSearcher
	consolidation *sqlite.ConsolidationStore
	retention     *sqlite.RetentionStore
	embeddings    *embedding.Service
	hybrid        *search.Engine
	assembler     *appcontext.Assembler
	maintenance   *maintenance.Service
	watcher       *sqlite.StaleWatcher
	cfg           *config.Config
}

// New builds an Engine from configuration, registering the configured
// embedding provider and wiring every downstream component.
func New(cfg *config.Config) (*Engine, error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	store, err := sqlite.NewStore(sqlite.StoreConfig{Path: cfg.DBPath, MaxConns: cfg.MaxConns})
	if err != nil {
		return nil, err
	}

	provider, err := resolveProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve embedding provider: %w", err)
	}
	embeddings := embedding.NewService(provider)

	dedupWindow := time.Duration(cfg.DedupWindowMS) * time.Millisecond
	observations := sqlite.NewObservationWriter(store, embeddings, dedupWindow)
	summaries := sqlite.NewSummaryStore(store)
	prompts := sqlite.NewPromptStore(store)
	sessions := sqlite.NewSessionStore(store)
	checkpoints := sqlite.NewCheckpointStore(store)
	aliases := sqlite.NewAliasStore(store)
	vector := sqlite.NewVectorSearcher(store, cfg)
	lexical := sqlite.NewLexicalSearcher(store, cfg)
	consolidation := sqlite.NewConsolidationStore(store, cfg)
	retention := sqlite.NewRetentionStore(store)

	hybrid := search.NewEngine(vector, lexical, embeddings, observations, cfg)
	assembler := appcontext.NewAssembler(observations, summaries, cfg)

	maint := maintenance.NewService(consolidation, retention, observations.GetDistinctProjects, cfg, log.Logger)

	watcher, err := sqlite.NewStaleWatcher(consolidation)
	if err != nil {
		log.Warn().Err(err).Msg("proactive stale watcher unavailable, falling back to poll-only staleness detection")
		watcher = nil
	}

	return &Engine{
		store:         store,
		observations:  observations,
		summaries:     summaries,
		prompts:       prompts,
		sessions:      sessions,
		checkpoints:   checkpoints,
		aliases:       aliases,
		vector:        vector,
		lexical:       lexical,
		consolidation: consolidation,
		retention:     retention,
		embeddings:    embeddings,
		hybrid:        hybrid,
		assembler:     assembler,
		maintenance:   maint,
		watcher:       watcher,
		cfg:           cfg,
	}, nil
}

func resolveProvider(cfg *config.Config) (embedding.Provider, error) {
	if cfg.EmbeddingProvider == embedding.OpenAIProviderVersion {
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey: cfg.EmbeddingAPIKey, BaseURL: cfg.EmbeddingBaseURL,
			ModelName: cfg.EmbeddingModel, Dimensions: cfg.EmbeddingDims,
		}), nil
	}
	return embedding.GetProvider(embedding.LocalProviderVersion)
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// StartMaintenance runs the maintenance scheduler until ctx is canceled.
// Callers typically invoke this in a goroutine at startup.
func (e *Engine) StartMaintenance(ctx context.Context) {
	if e.watcher != nil {
		go e.watcher.Run(ctx)
	}
	e.maintenance.Start(ctx)
}

// StopMaintenance signals the maintenance loop to exit and waits for it.
func (e *Engine) StopMaintenance() {
	e.maintenance.Stop()
	e.maintenance.Wait()
}

// CreateObservation implements the C4 caller-boundary operation.
func (e *Engine) CreateObservation(ctx context.Context, in models.CreateObservationInput) (*models.Observation, error) {
	if e.embeddings != nil {
		e.embeddings.Initialize(ctx)
	}
	obs, err := e.observations.CreateObservation(ctx, in)
	if err != nil {
		return nil, err
	}
	if e.watcher != nil {
		for _, path := range in.FilesModified {
			if err := e.watcher.Watch(path, obs.ID); err != nil {
				log.Debug().Err(err).Str("path", path).Msg("failed to register proactive stale watch")
			}
		}
	}
	return obs, nil
}

// SearchObservationsFTS implements ftsSearch.
func (e *Engine) SearchObservationsFTS(ctx context.Context, query string, filters models.SearchFilters) ([]models.Observation, error) {
	return e.lexical.FTSSearch(ctx, query, filters)
}

// SearchObservationsWithRank implements ftsSearchWithRank.
func (e *Engine) SearchObservationsWithRank(ctx context.Context, query string, filters models.SearchFilters) ([]sqlite.RankedHit, error) {
	return e.lexical.FTSSearchWithRank(ctx, query, filters)
}

// GetObservationsByIDs implements getObservationsByIds.
func (e *Engine) GetObservationsByIDs(ctx context.Context, ids []int64) ([]*models.Observation, error) {
	return e.observations.GetObservationsByIDs(ctx, ids)
}

// GetTimeline implements getTimeline.
func (e *Engine) GetTimeline(ctx context.Context, project string, limit int) ([]*models.Observation, error) {
	return e.observations.GetTimeline(ctx, project, limit)
}

// GetProjectStats implements getProjectStats.
func (e *Engine) GetProjectStats(ctx context.Context, project string) (*sqlite.ProjectStats, error) {
	return e.observations.GetProjectStats(ctx, project)
}

// GetStaleObservations implements getStaleObservations (detectStale).
func (e *Engine) GetStaleObservations(ctx context.Context, project string) ([]int64, error) {
	return e.consolidation.DetectStale(ctx, project)
}

// MarkObservationsStale implements markObservationsStale.
func (e *Engine) MarkObservationsStale(ctx context.Context, ids []int64, value bool) error {
	return e.consolidation.MarkStale(ctx, ids, value)
}

// UpdateLastAccessed implements updateLastAccessed.
func (e *Engine) UpdateLastAccessed(ctx context.Context, ids []int64) error {
	return e.observations.UpdateLastAccessed(ctx, ids)
}

// ConsolidateObservations implements consolidateObservations.
func (e *Engine) ConsolidateObservations(ctx context.Context, project string, opts sqlite.ConsolidationOptions) (sqlite.ConsolidationResult, error) {
	return e.consolidation.Consolidate(ctx, project, opts)
}

// HybridSearch implements hybridSearch.
func (e *Engine) HybridSearch(ctx context.Context, query string, opts search.Options) ([]models.SearchResult, error) {
	return e.hybrid.Search(ctx, query, opts)
}

// GetSmartContext implements getSmartContext.
func (e *Engine) GetSmartContext(ctx context.Context, project string, tokenBudget int64) (*appcontext.Result, error) {
	if tokenBudget <= 0 {
		tokenBudget = int64(e.cfg.DefaultTokenBudget)
	}
	return e.assembler.Assemble(ctx, project, tokenBudget)
}

// ApplyRetention implements applyRetention.
func (e *Engine) ApplyRetention(ctx context.Context, cfg sqlite.RetentionConfig) (sqlite.RetentionResult, error) {
	return e.retention.ApplyRetention(ctx, cfg)
}

// RetentionStats implements retentionStats.
func (e *Engine) RetentionStats(ctx context.Context, cfg sqlite.RetentionConfig) (sqlite.RetentionResult, error) {
	return e.retention.RetentionStats(ctx, cfg)
}

// SearchSummariesFiltered implements searchSummariesFiltered.
func (e *Engine) SearchSummariesFiltered(ctx context.Context, project string, limit int) ([]*models.Summary, error) {
	return e.summaries.GetRecentSummaries(ctx, project, limit)
}

// SaveSummary persists a session summary.
func (e *Engine) SaveSummary(ctx context.Context, s *models.Summary) (int64, error) {
	return e.summaries.StoreSummary(ctx, s)
}

// SavePrompt persists a prompt record.
func (e *Engine) SavePrompt(ctx context.Context, p *models.Prompt) (int64, error) {
	return e.prompts.SavePrompt(ctx, p)
}

// EnsureSession creates or fetches a session record.
func (e *Engine) EnsureSession(ctx context.Context, contentSessionID, project string) (int64, error) {
	return e.sessions.EnsureSession(ctx, contentSessionID, project)
}

// CompleteSession marks a session completed.
func (e *Engine) CompleteSession(ctx context.Context, contentSessionID string) error {
	return e.sessions.CompleteSession(ctx, contentSessionID)
}

// SaveCheckpoint persists a progress snapshot.
func (e *Engine) SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) (int64, error) {
	return e.checkpoints.SaveCheckpoint(ctx, cp)
}

// GetLatestCheckpoint fetches a session's most recent checkpoint.
func (e *Engine) GetLatestCheckpoint(ctx context.Context, sessionID string) (*models.Checkpoint, error) {
	return e.checkpoints.GetLatestCheckpoint(ctx, sessionID)
}

// SetProjectAlias sets a project's display name.
func (e *Engine) SetProjectAlias(ctx context.Context, project, displayName string) error {
	return e.aliases.SetAlias(ctx, project, displayName)
}

// GetProjectAlias fetches a project's display name.
func (e *Engine) GetProjectAlias(ctx context.Context, project string) (string, error) {
	return e.aliases.GetAlias(ctx, project)
}
