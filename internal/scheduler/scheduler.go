// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the dashboard's housekeeping jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ajwan-web/ajwan-admin/internal/model"
	"github.com/ajwan-web/ajwan-admin/internal/store"
)

// jobTimeout bounds a single run.
const jobTimeout = 5 * time.Minute

// Job is a named task with a cron schedule.
type Job struct {
	Name        string
	Description string
	Schedule    string
	Run         func(ctx context.Context) error
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	LastError   string
}

type registeredJob struct {
	job     Job
	entryID cron.EntryID
	lastErr string
}

// Scheduler handles scheduled tasks.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*registeredJob
}

// New creates a new scheduler instance.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*registeredJob),
	}
}

// Add registers a job. The schedule is validated here.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("scheduler: job needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("scheduler: job %q already registered", job.Name)
	}

	reg := &registeredJob{job: job}
	id, err := s.cron.AddFunc(job.Schedule, func() { _ = s.run(reg) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", job.Schedule, err)
	}
	reg.entryID = id
	s.jobs[job.Name] = reg

	s.logger.Debug("registered scheduled job", "name", job.Name, "schedule", job.Schedule)
	return nil
}

func (s *Scheduler) run(reg *registeredJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	err := reg.job.Run(ctx)

	s.mu.Lock()
	reg.lastErr = ""
	if err != nil {
		reg.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed", "job", reg.job.Name, "error", err, "category", model.EventCategorySystem)
	}
	return err
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// TriggerNow runs a job immediately and returns its error.
func (s *Scheduler) TriggerNow(name string) error {
	s.mu.RLock()
	reg, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}

	s.logger.Info("manually triggering job", "name", name)
	return s.run(reg)
}

// List returns all registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]JobInfo, 0, len(s.jobs))
	for _, reg := range s.jobs {
		entry := s.cron.Entry(reg.entryID)
		result = append(result, JobInfo{
			Name:        reg.job.Name,
			Description: reg.job.Description,
			Schedule:    reg.job.Schedule,
			LastRun:     entry.Prev,
			NextRun:     entry.Next,
			LastError:   reg.lastErr,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// PruneEventsJob deletes activity events older than retention every night.
func PruneEventsJob(queries *store.Queries, retention time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:        "prune-events",
		Description: "Delete activity log entries past the retention period",
		Schedule:    "15 3 * * *",
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-retention)
			n, err := queries.DeleteEventsBefore(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("pruning events: %w", err)
			}
			if n > 0 {
				logger.Info("pruned activity events", "deleted", n, "before", cutoff.Format(time.RFC3339))
			}
			return nil
		},
	}
}
