package diagnosis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one independent collaborator call in a fan-out.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Outcome is the settled result of a Task.
type Outcome struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// Settle runs all tasks concurrently and waits for every one of them.
// A failing or panicking task does not cancel the others. Outcomes are
// returned in task order.
func Settle(ctx context.Context, tasks ...Task) []Outcome {
	out := make([]Outcome, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() (err error) {
			start := time.Now()
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%s panicked: %v", t.Name, p)
				}
				out[i] = Outcome{Name: t.Name, Err: err, Elapsed: time.Since(start)}
				// the group never sees task errors
				err = nil
			}()
			return t.Run(ctx)
		})
	}
	_ = g.Wait()
	return out
}

// Find returns the outcome with the given name.
func Find(outcomes []Outcome, name string) (Outcome, bool) {
	for _, o := range outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}
