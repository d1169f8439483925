// Package summary produces monthly snapshots from committed transaction
// history. Snapshots are derived data: recomputing one from the same
// history always yields the same result, so runs are freely repeatable
// and stored via upsert keyed by owner and period.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"frugal/internal/core"
	"frugal/internal/remote"
)

type Summarizer struct {
	store  remote.Store
	logger *slog.Logger
}

func NewSummarizer(store remote.Store, logger *slog.Logger) *Summarizer {
	return &Summarizer{store: store, logger: logger}
}

// Run recomputes and upserts the snapshot for one owner and period.
func (s *Summarizer) Run(ctx context.Context, ownerID string, period core.Period) (core.MonthlySummary, error) {
	if err := period.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}

	txs, err := s.store.ListTransactions(ctx, ownerID, period)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("list transactions for %s: %w", period, err)
	}

	names, err := s.categoryNames(ctx, ownerID, period)
	if err != nil {
		return core.MonthlySummary{}, err
	}

	computed := core.Summarize(ownerID, period, txs, names)

	// Keep the snapshot's identity stable across recomputations.
	if existing, err := s.store.GetSummary(ctx, ownerID, period); err == nil {
		computed.ID = existing.ID
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.MonthlySummary{}, fmt.Errorf("load existing summary: %w", err)
	}

	stored, err := s.store.UpsertSummary(ctx, computed)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("store summary for %s: %w", period, err)
	}

	s.logger.InfoContext(ctx, "Monthly summary stored",
		"owner_id", ownerID,
		"period", string(period),
		"total_income", stored.TotalIncome.String(),
		"total_expenses", stored.TotalExpenses.String())

	return stored, nil
}

// CatchUp closes out the previous period if its snapshot is missing.
// Called opportunistically on the first day of a new month; any other
// day it is a no-op.
func (s *Summarizer) CatchUp(ctx context.Context, ownerID string, now time.Time) error {
	if now.Day() != 1 {
		return nil
	}

	previous := core.PeriodOf(now).Previous()
	if _, err := s.store.GetSummary(ctx, ownerID, previous); err == nil {
		return nil // already closed out
	} else if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("check summary for %s: %w", previous, err)
	}

	s.logger.InfoContext(ctx, "Closing out previous period", "period", string(previous))
	if _, err := s.Run(ctx, ownerID, previous); err != nil {
		return fmt.Errorf("close out %s: %w", previous, err)
	}
	return nil
}

// List returns stored summaries for the owner, newest period first.
func (s *Summarizer) List(ctx context.Context, ownerID string, limit int) ([]core.MonthlySummary, error) {
	return s.store.ListSummaries(ctx, ownerID, limit)
}

func (s *Summarizer) categoryNames(ctx context.Context, ownerID string, period core.Period) (map[int64]string, error) {
	categories, err := s.store.ListCategories(ctx, ownerID, period)
	if err != nil {
		return nil, fmt.Errorf("list categories for %s: %w", period, err)
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

// Scheduler drives the Summarizer on an interval so the first-of-month
// catch-up happens without anyone asking for it.
type Scheduler struct {
	summarizer *Summarizer
	ownerID    string
	interval   time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(summarizer *Summarizer, ownerID string, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		summarizer: summarizer,
		ownerID:    ownerID,
		interval:   interval,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("summary scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Summary scheduler started", "interval", s.interval)
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.running = false
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Summary scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for summary scheduler to stop: %w", ctx.Err())
	}
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.summarizer.CatchUp(ctx, s.ownerID, time.Now()); err != nil {
		s.logger.WarnContext(ctx, "Summary catch-up failed", "error", err)
	}
}
