package services

import (
	"context"
	"sync"
	"time"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
	"github.com/veralis-labs/kbindex/internal/core/ports/driving"
	"github.com/veralis-labs/kbindex/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// pollInterval is how often the loop checks for due tasks.
const pollInterval = 30 * time.Second

// Scheduler runs periodic maintenance. Its only task is the integrity
// check; the operations it invokes are idempotent, so an external
// scheduler may drive them just as well.
type Scheduler struct {
	cfg   domain.SchedulerConfig
	store driven.SchedulerStore
	kb    driving.KnowledgeBase

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(cfg domain.SchedulerConfig, store driven.SchedulerStore, kb driving.KnowledgeBase) *Scheduler {
	return &Scheduler{cfg: cfg, store: store, kb: kb}
}

// Start begins the scheduler loop. Blocks until Stop is called or the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.ensureTask(ctx); err != nil {
		logger.Warn("Scheduler: failed to initialise tasks: %v", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Check immediately on startup
	s.checkAndRunDueTasks(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for running
// tasks to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// ensureTask creates or updates the integrity task in the store.
func (s *Scheduler) ensureTask(ctx context.Context) error {
	task, err := s.store.GetTask(ctx, domain.TaskIDIntegrityCheck)
	if err != nil {
		return err
	}

	interval := s.cfg.IntegrityInterval
	if interval <= 0 {
		interval = time.Hour
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       domain.TaskIDIntegrityCheck,
			Name:     "Integrity Check",
			Interval: interval,
			Enabled:  s.cfg.Enabled,
			NextRun:  time.Now().Add(interval),
		}
	} else {
		if task.Interval != interval {
			task.Interval = interval
			task.NextRun = time.Now().Add(interval)
		}
		task.Enabled = s.cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// checkAndRunDueTasks runs every due task.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("Scheduler: list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		if tasks[i].Due(now) {
			s.runTask(ctx, &tasks[i])
		}
	}
}

// runTask executes one task and reschedules it.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.wg.Add(1)
	defer s.wg.Done()

	logger.Info("Scheduler: running task %s", task.ID)

	var err error
	switch task.ID {
	case domain.TaskIDIntegrityCheck:
		_, err = s.kb.IntegrityReport(ctx)
	default:
		logger.Warn("Scheduler: unknown task %s", task.ID)
		return
	}

	now := time.Now()
	task.LastRun = now
	task.NextRun = now.Add(task.Interval)
	if err != nil {
		task.LastStatus = "error"
		task.LastError = err.Error()
		logger.Warn("Scheduler: task %s failed: %v", task.ID, err)
	} else {
		task.LastStatus = "ok"
		task.LastError = ""
	}

	if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
		logger.Warn("Scheduler: save task %s: %v", task.ID, saveErr)
	}
}
