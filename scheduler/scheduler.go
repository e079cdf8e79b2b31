// Package scheduler implements L8: it registers up to three recurring
// crawl jobs from the active tier and enforces no-overlap (spec
// §4.9). Start/Stop and the context-cancellation shutdown follow the
// teacher's background poller (provider.HealthPoller), generalized
// from a single fixed-interval health check into three independently
// scheduled jobs: search runs on a plain ticker, while calendar and
// detail are cron-driven via robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/windowhan/airbnb-demands-research/tierconfig"
)

// JobFunc runs one invocation of a crawl job. It must not block past
// its own context's cancellation.
type JobFunc func(ctx context.Context)

// Scheduler drives the search, calendar and listing-detail jobs per
// the active tier's cadence.
type Scheduler struct {
	budget tierconfig.TierBudget
	log    zerolog.Logger

	search JobFunc
	calendar JobFunc
	detail  JobFunc

	cron   *cron.Cron
	ticker *time.Ticker

	mu      sync.Mutex
	running map[string]bool // job name -> in flight, enforces no-overlap

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler for the given tier budget. search,
// calendar and detail are the job entry points; calendar and detail
// are only registered when the tier enables them.
func New(budget tierconfig.TierBudget, log zerolog.Logger, search, calendar, detail JobFunc) *Scheduler {
	return &Scheduler{
		budget:   budget,
		log:      log.With().Str("component", "scheduler").Logger(),
		search:   search,
		calendar: calendar,
		detail:   detail,
		cron:     cron.New(),
		running:  make(map[string]bool),
	}
}

// Start registers the tier's jobs and fires one search job
// immediately, per spec §4.9. It returns immediately; the cron
// scheduler and search ticker run in background goroutines.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.budget.CalendarEnabled {
		expr := calendarCronExpr(s.budget.CalendarHour)
		if _, err := s.cron.AddFunc(expr, func() { s.runGuarded(ctx, "calendar", s.calendar) }); err != nil {
			s.log.Error().Err(err).Str("expr", expr).Msg("failed to register calendar job")
		}
	}
	if s.budget.DetailEnabled {
		const weeklyMondayAt5am = "0 5 * * 1"
		if _, err := s.cron.AddFunc(weeklyMondayAt5am, func() { s.runGuarded(ctx, "detail", s.detail) }); err != nil {
			s.log.Error().Err(err).Msg("failed to register detail job")
		}
	}
	s.cron.Start()

	interval := time.Duration(s.budget.SearchIntervalMinutes) * time.Minute
	s.ticker = time.NewTicker(interval)

	s.wg.Add(1)
	go s.searchLoop(ctx)

	s.log.Info().Str("tier", s.budget.Tier).Dur("search_interval", interval).Msg("scheduler started")
}

func (s *Scheduler) searchLoop(ctx context.Context) {
	defer s.wg.Done()

	s.runGuarded(ctx, "search", s.search)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.runGuarded(ctx, "search", s.search)
		}
	}
}

// runGuarded enforces max_instances=1 per job name.
func (s *Scheduler) runGuarded(ctx context.Context, name string, job JobFunc) {
	if job == nil {
		return
	}

	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.log.Warn().Str("job", name).Msg("previous instance still running, skipping this tick")
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[name] = false
		s.mu.Unlock()
	}()

	job(ctx)
}

// Stop shuts the scheduler down without waiting for in-flight work,
// per spec §4.9 and §5's cancellation model.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	// cron.Stop() returns a context that completes once in-flight cron
	// jobs finish; it is deliberately not awaited here; per spec §4.9
	// the scheduler shuts down without waiting for in-flight work.
	s.cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

func calendarCronExpr(hour int) string {
	return fmt.Sprintf("0 %d * * *", hour)
}
