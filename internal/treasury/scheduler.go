package treasury

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// riseCheckInterval is how often the scheduler polls for the 10% rise
// trigger; the cron cadence is separate and configured via sweep_schedule.
const riseCheckInterval = 1 * time.Minute

// Scheduler drives Manager.Evaluate from both the cron and rise
// triggers, coalescing a cron fire and a rise-trigger fire that land in
// the same poll into a single Evaluate call. Start/Stop shape grounded
// on internal/queue/scheduler.go's mutex-guarded ticker/waitgroup
// lifecycle.
type Scheduler struct {
	manager  *Manager
	params   Params
	cronExpr string

	cron    *cron.Cron
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	log     zerolog.Logger

	pendingMu sync.Mutex
	pending   map[SweepTrigger]bool
}

// NewScheduler builds a Scheduler for the given cron expression (default:
// "0 0 0 * * *", daily at 00:00 UTC).
func NewScheduler(manager *Manager, params Params, cronExpr string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		manager:  manager,
		params:   params,
		cronExpr: cronExpr,
		stop:     make(chan struct{}),
		pending:  make(map[SweepTrigger]bool),
		log:      log.With().Str("component", "treasury_scheduler").Logger(),
	}
}

// Start begins the cron schedule and the rise-trigger poll.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	if _, err := s.cron.AddFunc(s.cronExpr, func() {
		s.markPending(TriggerSchedule)
	}); err != nil {
		return err
	}
	s.cron.Start()

	s.started = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.pollLoop(ctx)
	s.log.Info().Str("cron", s.cronExpr).Msg("treasury scheduler started")
	return nil
}

// Stop halts the scheduler and waits for the poll loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cron.Stop()
	close(s.stop)
	s.wg.Wait()
	s.started = false
}

func (s *Scheduler) markPending(t SweepTrigger) {
	s.pendingMu.Lock()
	s.pending[t] = true
	s.pendingMu.Unlock()
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(riseCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.manager.ShouldConsiderRiseTrigger() {
				s.markPending(TriggerRise)
			}
			s.drainAndEvaluate(ctx)
		}
	}
}

func (s *Scheduler) drainAndEvaluate(ctx context.Context) {
	s.pendingMu.Lock()
	if len(s.pending) == 0 {
		s.pendingMu.Unlock()
		return
	}
	triggers := make([]SweepTrigger, 0, len(s.pending))
	for t := range s.pending {
		triggers = append(triggers, t)
	}
	s.pending = make(map[SweepTrigger]bool)
	s.pendingMu.Unlock()

	result, err := s.manager.Evaluate(ctx, triggers, s.params, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("sweep evaluation failed")
		return
	}
	if result.Attempted {
		s.log.Info().
			Bool("swept", result.Swept).
			Float64("amount", result.Amount).
			Interface("triggers", result.Triggers).
			Msg("sweep evaluated")
	}
}
