// Package maintenance runs C10 (staleness/consolidation) and C11
// (retention) on a schedule, outside any caller's request path.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/engram/internal/config"
	"github.com/thebtf/engram/internal/db/sqlite"
)

// Service handles scheduled maintenance tasks.
type Service struct {
	log           zerolog.Logger
	consolidation *sqlite.ConsolidationStore
	retention     *sqlite.RetentionStore
	projects      func(ctx context.Context) ([]string, error)
	cfg           *config.Config

	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool

	lastRunTime     time.Time
	lastRunDuration time.Duration
	totalMerged     int64
	totalDeleted    int64
}

// NewService wires the consolidation and retention stores. projects
// enumerates the distinct project labels maintenance should sweep.
func NewService(
	consolidation *sqlite.ConsolidationStore,
	retention *sqlite.RetentionStore,
	projects func(ctx context.Context) ([]string, error),
	cfg *config.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		consolidation: consolidation,
		retention:     retention,
		projects:      projects,
		cfg:           cfg,
		log:           log.With().Str("component", "maintenance").Logger(),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start begins the maintenance loop, blocking until Stop is called or ctx
// is canceled.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneCh)
	}()

	if !s.cfg.MaintenanceEnabled {
		s.log.Info().Msg("maintenance disabled, not starting scheduler")
		return
	}

	interval := time.Duration(s.cfg.MaintenanceIntervalHours) * time.Hour
	if interval < time.Hour {
		interval = time.Hour
	}

	s.log.Info().Dur("interval", interval).Msg("starting maintenance scheduler")

	s.runMaintenance(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("maintenance shutting down due to context cancellation")
			return
		case <-s.stopCh:
			s.log.Info().Msg("maintenance shutting down due to stop signal")
			return
		case <-ticker.C:
			s.runMaintenance(ctx)
		}
	}
}

// Stop signals the maintenance loop to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
}

// Wait blocks until the maintenance loop has exited.
func (s *Service) Wait() {
	<-s.doneCh
}

// runMaintenance runs staleness detection, consolidation, and retention
// for every known project.
func (s *Service) runMaintenance(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("starting maintenance run")

	projects, err := s.projects(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to enumerate projects for maintenance")
		return
	}

	var merged, removed int64
	for _, project := range projects {
		staleIDs, err := s.consolidation.DetectStale(ctx, project)
		if err != nil {
			s.log.Error().Err(err).Str("project", project).Msg("detectStale failed")
		} else if len(staleIDs) > 0 {
			if err := s.consolidation.MarkStale(ctx, staleIDs, true); err != nil {
				s.log.Error().Err(err).Str("project", project).Msg("markStale failed")
			}
		}

		result, err := s.consolidation.Consolidate(ctx, project, sqlite.ConsolidationOptions{MinGroupSize: s.cfg.ConsolidationMinGroupSize})
		if err != nil {
			s.log.Error().Err(err).Str("project", project).Msg("consolidate failed")
			continue
		}
		merged += int64(result.Merged)
		removed += int64(result.Removed)
	}

	retentionResult, err := s.retention.ApplyRetention(ctx, sqlite.RetentionConfig{
		ObsDays:       s.cfg.RetentionObsDays,
		SummaryDays:   s.cfg.RetentionSummaryDays,
		PromptDays:    s.cfg.RetentionPromptDays,
		KnowledgeDays: s.cfg.RetentionKnowledgeDays,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("applyRetention failed")
	}

	s.mu.Lock()
	s.lastRunTime = time.Now()
	s.lastRunDuration = time.Since(start)
	s.totalMerged += merged
	s.totalDeleted += removed + int64(retentionResult.Total)
	s.mu.Unlock()

	s.log.Info().
		Dur("duration", time.Since(start)).
		Int64("groups_merged", merged).
		Int64("observations_removed", removed).
		Int("retention_deleted", retentionResult.Total).
		Msg("maintenance run completed")
}

// Stats returns maintenance run statistics.
func (s *Service) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"enabled":          s.cfg.MaintenanceEnabled,
		"interval_hours":   s.cfg.MaintenanceIntervalHours,
		"last_run":         s.lastRunTime,
		"last_duration_ms": s.lastRunDuration.Milliseconds(),
		"total_merged":     s.totalMerged,
		"total_deleted":    s.totalDeleted,
		"running":          s.running,
	}
}

// RunNow triggers an immediate, out-of-band maintenance run.
func (s *Service) RunNow(ctx context.Context) {
	go s.runMaintenance(ctx)
}
