package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task represents a scheduled task
type Task struct {
	Name     string
	Interval time.Duration
	Function func(ctx context.Context)
}

// Scheduler runs periodic tasks until its context is cancelled. Each task
// runs in its own goroutine, so a slow run delays only the next run of the
// same task.
type Scheduler struct {
	tasks  []*Task
	logger *slog.Logger
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates a new task scheduler
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:  make([]*Task, 0),
		logger: logger,
	}
}

// Every schedules fn to run immediately and then every interval.
func (s *Scheduler) Every(interval time.Duration, name string, fn func(ctx context.Context)) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Function: fn,
	})
	return s
}

// TaskCount returns the number of scheduled tasks
func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Run starts all scheduled tasks and blocks until ctx is cancelled and every
// in-flight run has returned.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	tasks := append([]*Task(nil), s.tasks...)
	s.mu.Unlock()

	s.logger.Info("starting scheduler", "tasks", len(tasks))
	for _, task := range tasks {
		if task.Interval <= 0 {
			s.logger.Warn("skipping task without interval", "task", task.Name)
			continue
		}
		s.logger.Info("scheduled task", "task", task.Name, "every", task.Interval.String())
		s.wg.Add(1)
		go s.runPeriodic(ctx, task)
	}

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runPeriodic(ctx context.Context, task *Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.safeRun(ctx, task)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeRun(ctx, task)
		}
	}
}

func (s *Scheduler) safeRun(ctx context.Context, task *Task) {
	// Recover from panics to prevent one task from crashing the scheduler
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "task", task.Name, "panic", r)
		}
	}()

	task.Function(ctx)
}
