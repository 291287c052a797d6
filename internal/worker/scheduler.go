package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig holds the ingest schedule
type SchedulerConfig struct {
	// RealtimeInterval is how often positions are pulled (default: 1 minute)
	RealtimeInterval time.Duration

	// HistoricalInterval is how often trips and alarms are pulled (default: 24 hours)
	HistoricalInterval time.Duration
}

// DefaultSchedulerConfig returns the default ingest schedule
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RealtimeInterval:   time.Minute,
		HistoricalInterval: 24 * time.Hour,
	}
}

// job is one periodic task run by the scheduler
type job struct {
	name      string
	interval  time.Duration
	immediate bool
	run       func(ctx context.Context) (*SyncResult, error)
}

// Scheduler runs the ingest jobs on tickers in background goroutines.
type Scheduler struct {
	jobs     []job
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewScheduler creates a scheduler for the realtime and historical jobs.
// Realtime runs immediately on start; historical waits for its first tick
// unless runHistoricalOnStart is set.
func NewScheduler(config SchedulerConfig, ingest *IngestService, runHistoricalOnStart bool) *Scheduler {
	return &Scheduler{
		jobs: []job{
			{name: JobRealtime, interval: config.RealtimeInterval, immediate: true, run: ingest.SyncRealtime},
			{name: JobHistorical, interval: config.HistoricalInterval, immediate: runHistoricalOnStart, run: ingest.SyncHistorical},
		},
		stopChan: make(chan struct{}),
	}
}

// Start starts one goroutine per job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil // Already running
	}

	s.running = true
	s.stopChan = make(chan struct{})

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.jobLoop(ctx, j)
	}

	slog.Info("worker.scheduler.started",
		"component", "worker.scheduler",
		"event", "scheduler.started",
		"job_count", len(s.jobs),
	)

	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight runs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return // Not running
	}

	slog.Info("worker.scheduler.stopping",
		"component", "worker.scheduler",
		"event", "scheduler.stopping",
	)

	close(s.stopChan)
	s.running = false

	// Wait for all jobs to finish (with timeout)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker.scheduler.stopped",
			"component", "worker.scheduler",
			"event", "scheduler.stopped",
		)
	case <-time.After(30 * time.Second):
		slog.Warn("worker.scheduler.stop_timeout",
			"component", "worker.scheduler",
			"event", "scheduler.stop_timeout",
		)
	}
}

// jobLoop runs a single job on its ticker until stopped
func (s *Scheduler) jobLoop(parent context.Context, j job) {
	defer s.wg.Done()

	// Cancel in-flight runs when Stop is called
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	logger := slog.With(
		"component", "worker.scheduler",
		"job", j.name,
	)

	logger.Info("worker.scheduler.job_started",
		"event", "job.started",
		"interval", j.interval,
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	if j.immediate {
		s.runOnce(ctx, j)
	}

	for {
		select {
		case <-s.stopChan:
			logger.Info("worker.scheduler.job_stopped",
				"event", "job.stopped",
			)
			return

		case <-ticker.C:
			s.runOnce(ctx, j)

		case <-ctx.Done():
			logger.Info("worker.scheduler.job_context_cancelled",
				"event", "job.context_cancelled",
			)
			return
		}
	}
}

// runOnce runs the job; failures are logged by the ingest service and retried on the next tick
func (s *Scheduler) runOnce(ctx context.Context, j job) {
	_, _ = j.run(ctx)
}
