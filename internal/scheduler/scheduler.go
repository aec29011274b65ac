// Package scheduler runs the periodic garbage collection for every TTL-indexed
// structure. Each task gets its own ticker goroutine so a slow sweep never blocks
// the others; a missed tick coalesces into the next one.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one periodic sweep. Run returns the number of entries it removed, which
// is logged at debug level when non-zero.
type Task struct {
	Name  string
	Every time.Duration
	Run   func() int
}

// Scheduler owns a set of periodic tasks.
type Scheduler struct {
	tasks []Task
	log   zerolog.Logger
	wg    sync.WaitGroup
}

// New creates an empty scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{log: logger.With().Str("component", "scheduler").Logger()}
}

// Add registers a task. Must be called before Start.
func (s *Scheduler) Add(name string, every time.Duration, run func() int) {
	s.tasks = append(s.tasks, Task{Name: name, Every: every, Run: run})
}

// Start launches one goroutine per task. Tasks stop when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
	s.log.Info().Int("tasks", len(s.tasks)).Msg("Scheduler started")
}

// Wait blocks until every task goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := task.Run(); removed > 0 {
				s.log.Debug().Str("task", task.Name).Int("removed", removed).Msg("Sweep complete")
			}
		}
	}
}
