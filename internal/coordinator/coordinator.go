package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"
)

// Task is one unit of work run by the Coordinator.
type Task struct {
	Name string
	Run  func(ctx context.Context) error

	// Critical tasks stop every other task when they fail.
	Critical bool
}

// Result is the outcome of a finished task.
type Result struct {
	Name    string
	Err     error
	Elapsed time.Duration

	critical bool
}

// Coordinator runs tasks concurrently and reports their results
type Coordinator struct {
	tasks []Task
}

// New creates a new Coordinator with the given tasks
func New(tasks ...Task) *Coordinator {
	return &Coordinator{
		tasks: tasks,
	}
}

// Run executes all tasks concurrently and logs each result as it arrives.
// It returns once every task has finished. Failures of non-critical tasks are
// only logged; the first critical failure cancels the remaining tasks and is
// returned.
func (c *Coordinator) Run(ctx context.Context) error {
	if len(c.tasks) == 0 {
		return fmt.Errorf("no tasks configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan Result, len(c.tasks))

	var wg conc.WaitGroup
	for _, task := range c.tasks {
		wg.Go(func() {
			start := time.Now()
			err := task.Run(ctx)
			results <- Result{Name: task.Name, Err: err, Elapsed: time.Since(start), critical: task.Critical}
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var failed error
	for result := range results {
		if result.Err == nil {
			slog.Info("task finished", "task", result.Name, "elapsed", result.Elapsed)
			continue
		}

		slog.Error("task failed", "task", result.Name, "elapsed", result.Elapsed, "error", result.Err.Error())
		if result.critical && failed == nil {
			failed = fmt.Errorf("%s: %w", result.Name, result.Err)
			cancel()
		}
	}

	return failed
}
