// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrUnknownJob is returned by RunNow for names that were never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobStatus describes a registered job and its most recent run.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule,omitempty"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	Running   bool      `json:"running"`
}

type registeredJob struct {
	job      Job
	schedule string
	entryID  cron.EntryID
	runMu    sync.Mutex // serializes runs of the same job

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	running bool
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*registeredJob
}

// New creates a new scheduler. Schedules take a leading seconds field.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]*registeredJob),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "0 30 6 * * *"       - 06:30 every day
//   - "@hourly"            - Every hour
//   - "@every 30s"         - Every 30 seconds
//
// An empty schedule registers the job for RunNow only.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %q is already registered", job.Name())
	}

	entry := &registeredJob{job: job, schedule: schedule}
	if schedule != "" {
		id, err := s.cron.AddFunc(schedule, func() {
			_ = s.run(entry)
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, job.Name(), err)
		}
		entry.entryID = id
	}
	s.jobs[job.Name()] = entry

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a registered job immediately (outside schedule)
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	entry, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.log.Info().Str("job", name).Msg("Running job immediately")
	return s.run(entry)
}

// Jobs lists registered jobs ordered by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for name, entry := range s.jobs {
		entry.mu.Lock()
		status := JobStatus{
			Name:     name,
			Schedule: entry.schedule,
			LastRun:  entry.lastRun,
			Running:  entry.running,
		}
		if entry.lastErr != nil {
			status.LastError = entry.lastErr.Error()
		}
		entry.mu.Unlock()

		if entry.schedule != "" {
			status.NextRun = s.cron.Entry(entry.entryID).Next
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) run(entry *registeredJob) error {
	entry.runMu.Lock()
	defer entry.runMu.Unlock()

	name := entry.job.Name()
	s.log.Debug().Str("job", name).Msg("Running job")

	start := time.Now()
	entry.mu.Lock()
	entry.running = true
	entry.mu.Unlock()

	err := entry.job.Run()

	entry.mu.Lock()
	entry.running = false
	entry.lastRun = start
	entry.lastErr = err
	entry.mu.Unlock()

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", name).
			Msg("Job failed")
		return err
	}

	s.log.Debug().
		Str("job", name).
		Dur("duration", time.Since(start)).
		Msg("Job completed")
	return nil
}
