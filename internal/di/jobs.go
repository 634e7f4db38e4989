package di

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// redeliverInterval is how often pending (unacked) bus deliveries are
// checked for redelivery.
const redeliverInterval = 30 * time.Second

// redeliverOlderThan is the age at which a pending delivery is considered
// abandoned and re-delivered to its subscribers.
const redeliverOlderThan = 2 * time.Minute

// archiveSweepInterval is how often cold-archived EVT envelopes are rotated
// out of the archive bucket, when archival is enabled.
const archiveSweepInterval = 1 * time.Hour

// archiveRetentionDays/archiveRetentionBytes are the age and size bounds
// RotateOld applies to the objects in the archive bucket.
const (
	archiveRetentionDays  = 7
	archiveRetentionBytes = 512 * 1024 * 1024
)

// Jobs owns every background goroutine the Brain runs alongside its HTTP
// server, grounded on internal/queue/scheduler.go's mutex-guarded
// ticker/waitgroup lifecycle.
type Jobs struct {
	container *Container
	log       zerolog.Logger

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewJobs builds the background-job runner for an already-wired Container.
func NewJobs(c *Container, log zerolog.Logger) *Jobs {
	return &Jobs{
		container: c,
		log:       log.With().Str("component", "jobs").Logger(),
	}
}

// Start launches every background loop: fill ingestion, the treasury sweep
// scheduler, bus redelivery, and (if configured) EVT cold-archival.
func (j *Jobs) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return nil
	}
	j.stop = make(chan struct{})

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.container.FillListener.Run(ctx)
	}()

	if err := j.container.TreasuryScheduler.Start(ctx); err != nil {
		return err
	}

	j.wg.Add(1)
	go j.runRedeliverLoop(ctx)

	if j.container.Archiver != nil {
		j.wg.Add(1)
		go j.runArchiveLoop(ctx)
	}

	j.started = true
	j.log.Info().Msg("background jobs started")
	return nil
}

// Stop signals every background loop to exit and waits for them to finish.
func (j *Jobs) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.started {
		return
	}
	close(j.stop)
	j.container.TreasuryScheduler.Stop()
	j.wg.Wait()
	j.started = false
	j.log.Info().Msg("background jobs stopped")
}

func (j *Jobs) runRedeliverLoop(ctx context.Context) {
	defer j.wg.Done()
	ticker := time.NewTicker(redeliverInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			n, err := j.container.Bus.RedeliverPending(ctx, redeliverOlderThan)
			if err != nil {
				j.log.Error().Err(err).Msg("redeliver sweep failed")
				continue
			}
			if n > 0 {
				j.log.Info().Int("count", n).Msg("redelivered pending envelopes")
			}
		}
	}
}

func (j *Jobs) runArchiveLoop(ctx context.Context) {
	defer j.wg.Done()
	ticker := time.NewTicker(archiveSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			if err := j.container.Archiver.RotateOld(ctx, archiveRetentionDays, archiveRetentionBytes); err != nil {
				j.log.Error().Err(err).Msg("archive rotation failed")
			}
		}
	}
}
