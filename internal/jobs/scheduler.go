package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of periodic maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job      Job
	interval time.Duration
}

// Scheduler runs jobs on fixed intervals. It implements
// cartridge.BackgroundWorker.
type Scheduler struct {
	logger *slog.Logger
	jobs   []scheduledJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	// Jobs share the SQLite writer, so only one executes at a time.
	processing sync.Mutex
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

// Every registers job to run at start and then once per interval.
// Registering after Start has no effect.
func (s *Scheduler) Every(interval time.Duration, job Job) *Scheduler {
	s.jobs = append(s.jobs, scheduledJob{job: job, interval: interval})
	return s
}

// Start begins all registered jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Info("Background jobs already running")
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	for _, sj := range s.jobs {
		s.wg.Add(1)
		go s.loop(sj)
	}

	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) loop(sj scheduledJob) {
	defer s.wg.Done()

	s.logger.Info("Starting job",
		slog.String("job", sj.job.Name()),
		slog.Duration("interval", sj.interval))
	s.execute(sj.job)

	ticker := time.NewTicker(sj.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.execute(sj.job)
		case <-s.ctx.Done():
			s.logger.Info("Job stopped", slog.String("job", sj.job.Name()))
			return
		}
	}
}

// execute runs job with panics recovered and errors logged.
func (s *Scheduler) execute(job Job) {
	s.processing.Lock()
	defer s.processing.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
		}
	}()

	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
}

// Stop cancels all jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Background jobs stopped")
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
