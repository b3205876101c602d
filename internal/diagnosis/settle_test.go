package diagnosis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/aidiag/internal/model"
)

func TestSettleCollectsEveryOutcome(t *testing.T) {
	outcomes := Settle(context.Background(),
		Task{Name: "ok", Run: func(context.Context) error { return nil }},
		Task{Name: "fails", Run: func(context.Context) error { return errBoom }},
		Task{Name: "panics", Run: func(context.Context) error { panic("kaboom") }},
	)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "ok", outcomes[0].Name)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, errBoom)
	require.Error(t, outcomes[2].Err)
	assert.Contains(t, outcomes[2].Err.Error(), "kaboom")
}

func TestSettleFailureDoesNotCancelOthers(t *testing.T) {
	outcomes := Settle(context.Background(),
		Task{Name: "fast-fail", Run: func(context.Context) error { return errBoom }},
		Task{Name: "slow", Run: func(ctx context.Context) error {
			select {
			case <-time.After(50 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
	)
	slow, ok := Find(outcomes, "slow")
	require.True(t, ok)
	assert.NoError(t, slow.Err)
	assert.GreaterOrEqual(t, slow.Elapsed, 50*time.Millisecond)
}

func TestSettleRunsConcurrently(t *testing.T) {
	// each task waits for the other to start
	a, b := make(chan struct{}), make(chan struct{})
	wait := func(mine, theirs chan struct{}) func(context.Context) error {
		return func(context.Context) error {
			close(mine)
			select {
			case <-theirs:
				return nil
			case <-time.After(time.Second):
				return errors.New("tasks ran sequentially")
			}
		}
	}
	outcomes := Settle(context.Background(),
		Task{Name: "a", Run: wait(a, b)},
		Task{Name: "b", Run: wait(b, a)},
	)
	for _, o := range outcomes {
		assert.NoError(t, o.Err, o.Name)
	}
}

func TestSettleEmpty(t *testing.T) {
	assert.Empty(t, Settle(context.Background()))
	_, ok := Find(nil, "x")
	assert.False(t, ok)
}

func TestTracker(t *testing.T) {
	tr := NewTracker(2)
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	tr.Record("a", model.StageReceived)
	tr.Fail("a", model.StageNotifyFailed, errBoom)
	tr.SetReportURL("a", "https://files.example/a.html")

	snap, ok := tr.Get("a")
	require.True(t, ok)
	assert.Equal(t, []model.Stage{model.StageReceived, model.StageNotifyFailed, model.StageReportHosted}, snap.Stages)
	assert.Equal(t, "boom", snap.LastError)
	assert.Equal(t, "https://files.example/a.html", snap.ReportURL)

	// snapshots are copies
	snap.Stages[0] = "mutated"
	again, _ := tr.Get("a")
	assert.Equal(t, model.StageReceived, again.Stages[0])

	tr.Record("b", model.StageReceived)
	tr.Record("c", model.StageReceived)
	assert.Equal(t, 2, tr.Len())
	_, ok = tr.Get("a")
	assert.False(t, ok, "least recently updated entry evicted")

	_, ok = tr.Get("missing")
	assert.False(t, ok)
}
