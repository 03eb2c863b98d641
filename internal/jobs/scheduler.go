package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tortshark/backend/internal/logger"
	"github.com/tortshark/backend/internal/models"
	"github.com/tortshark/backend/internal/queue"
	"github.com/tortshark/backend/internal/services"
)

// Cron specs run in the sync timezone. Lead platforms close out the previous
// day early morning Eastern; spend lands continuously, so Google is polled
// every 15 minutes.
const (
	leadProsperDailySpec = "0 30 6 * * *"
	hyrosDailySpec       = "0 45 6 * * *"
	googleSpendSpec      = "0 */15 * * * *"
)

// Scheduler owns the cron entries that enqueue recurring sync runs and the
// worker pool that drains the run queue.
type Scheduler struct {
	services *services.Container
	cron     *cron.Cron
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates the scheduler. Cron entries fire in the configured
// sync timezone so "06:30" means 06:30 Eastern, not server time.
func NewScheduler(svc *services.Container) *Scheduler {
	loc, err := time.LoadLocation(svc.Config.SyncTimezone)
	if err != nil {
		loc = time.UTC
	}

	return &Scheduler{
		services: svc,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		stopChan: make(chan struct{}),
	}
}

// Start registers the recurring syncs and launches the worker pool.
func (s *Scheduler) Start() {
	logger.Info().Msg("Starting sync scheduler")

	s.addEntry(leadProsperDailySpec, models.PlatformLeadProsper, 2)
	s.addEntry(hyrosDailySpec, models.PlatformHyros, 2)
	s.addEntry(googleSpendSpec, models.PlatformGoogleAds, 1)
	s.cron.Start()

	workers := s.services.Config.SyncWorkerCount
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	logger.Info().Int("workers", workers).Msg("Sync scheduler started")
}

// Stop drains the pool. In-flight runs finish; queued runs stay queued for
// the next process.
func (s *Scheduler) Stop() {
	logger.Info().Msg("Stopping sync scheduler")
	close(s.stopChan)
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
}

func (s *Scheduler) addEntry(spec string, platform models.Platform, days int) {
	_, err := s.cron.AddFunc(spec, func() {
		s.enqueueScheduled(platform, days)
	})
	if err != nil {
		logger.Error().Err(err).
			Str("platform", string(platform)).
			Str("spec", spec).
			Msg("Failed to register cron entry")
	}
}

// enqueueScheduled queues a trailing-window sync with no triggering user. A
// still-queued identical run from the previous tick is left alone.
func (s *Scheduler) enqueueScheduled(platform models.Platform, days int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run, err := s.services.Sync.Backfill(ctx, platform, nil, days, nil)
	if err != nil {
		if errors.Is(err, queue.ErrDuplicateRun) {
			logger.Debug().Str("platform", string(platform)).Msg("Scheduled sync already queued")
			return
		}
		logger.Error().Err(err).Str("platform", string(platform)).Msg("Failed to enqueue scheduled sync")
		return
	}

	logger.Info().
		Str("platform", string(platform)).
		Str("run_id", run.ID.String()).
		Str("start", run.StartDate).
		Str("end", run.EndDate).
		Msg("Scheduled sync enqueued")
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	logger.Debug().Int("worker", id).Msg("Sync worker started")

	for {
		select {
		case <-s.stopChan:
			logger.Debug().Int("worker", id).Msg("Sync worker stopped")
			return
		default:
		}

		ctx := context.Background()
		runID, err := s.services.Queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				logger.Warn().Err(err).Int("worker", id).Msg("Queue dequeue failed")
				// Back off briefly so a dead Redis does not spin the worker.
				time.Sleep(time.Second)
			}
			continue
		}

		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		if err := s.services.Sync.Execute(runCtx, runID); err != nil {
			logger.Warn().Err(err).
				Int("worker", id).
				Str("run_id", runID.String()).
				Msg("Sync run finished with error")
		}
		cancel()
	}
}
