package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/aidiag/internal/model"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestMemory(ttl time.Duration, max int) (*Memory, *clock) {
	clk := &clock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(ttl, max)
	m.now = clk.now
	return m, clk
}

func result(id string) model.DiagnosisResult {
	return model.DiagnosisResult{DiagnosisID: id, OverallScore: 70, Grade: "B"}
}

func TestMemoryResult(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory(time.Hour, 0)

	_, ok := m.GetResult(ctx, "a")
	assert.False(t, ok)

	m.PutResult(ctx, result("a"))
	got, ok := m.GetResult(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 70, got.OverallScore)

	clk.advance(59 * time.Minute)
	_, ok = m.GetResult(ctx, "a")
	assert.True(t, ok)

	clk.advance(time.Minute)
	_, ok = m.GetResult(ctx, "a")
	assert.False(t, ok, "entry expires at ttl")
	assert.Zero(t, m.Len())
}

func TestMemoryNarrativeIsCopied(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(time.Hour, 0)

	n := &model.Narrative{Summary: "original"}
	m.PutNarrative(ctx, "a", n)
	n.Summary = "changed by caller"

	got, ok := m.GetNarrative(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "original", got.Summary)

	got.Summary = "changed by reader"
	again, _ := m.GetNarrative(ctx, "a")
	assert.Equal(t, "original", again.Summary)

	got.Strengths = append(got.Strengths, "added by reader")
	m.PutNarrative(ctx, "c", &model.Narrative{Strengths: []string{"team"}})
	first, _ := m.GetNarrative(ctx, "c")
	first.Strengths[0] = "mutated"
	second, _ := m.GetNarrative(ctx, "c")
	assert.Equal(t, []string{"team"}, second.Strengths)

	m.PutNarrative(ctx, "b", nil)
	_, ok = m.GetNarrative(ctx, "b")
	assert.False(t, ok)
}

func TestMemoryResultIsCopied(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(time.Hour, 0)

	r := result("a")
	r.CategoryScores = []model.CategoryScore{{Category: model.CategoryLeadership, NormalizedScore: 80}}
	r.Responses = model.Responses{"leadership_1": 4}
	m.PutResult(ctx, r)
	r.Responses["leadership_1"] = 1

	got, ok := m.GetResult(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 4, got.Responses["leadership_1"])
	got.CategoryScores[0].NormalizedScore = 0
	got.Responses["leadership_2"] = 5

	again, _ := m.GetResult(ctx, "a")
	assert.InDelta(t, 80.0, again.CategoryScores[0].NormalizedScore, 1e-9)
	assert.Len(t, again.Responses, 1)
}

func TestMemoryEviction(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory(time.Hour, 2)

	m.PutResult(ctx, result("a"))
	clk.advance(time.Second)
	m.PutResult(ctx, result("b"))
	clk.advance(time.Second)
	m.PutResult(ctx, result("c"))

	_, ok := m.GetResult(ctx, "a")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = m.GetResult(ctx, "b")
	assert.True(t, ok)
	_, ok = m.GetResult(ctx, "c")
	assert.True(t, ok)

	// overwriting an existing key does not evict
	m.PutResult(ctx, result("b"))
	assert.Equal(t, 2, m.Len())
}

func TestMemoryConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, 50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			m.PutResult(ctx, result(id))
			m.GetResult(ctx, id)
			m.PutNarrative(ctx, id, &model.Narrative{Summary: id})
			m.GetNarrative(ctx, id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, m.Len())
}

func TestRedisUnreachableIsBestEffort(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := newRedis(client, time.Minute)
	defer c.Close()

	c.PutResult(ctx, result("a"))
	_, ok := c.GetResult(ctx, "a")
	assert.False(t, ok)
	c.PutNarrative(ctx, "a", &model.Narrative{Summary: "x"})
	_, ok = c.GetNarrative(ctx, "a")
	assert.False(t, ok)
	assert.Error(t, c.Ping(ctx))
}

func TestNewRedisPingFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, "127.0.0.1:1", time.Minute)
	assert.Error(t, err)
}

// TestRedisRoundTrip runs against a real server when AIDIAG_TEST_REDIS is set.
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("AIDIAG_TEST_REDIS")
	if addr == "" {
		t.Skip("AIDIAG_TEST_REDIS not set")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, addr, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	id := "test-" + time.Now().Format("150405.000000")
	c.PutResult(ctx, result(id))
	got, ok := c.GetResult(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "B", got.Grade)

	c.PutNarrative(ctx, id, &model.Narrative{Summary: "hello", Strengths: []string{"a"}})
	n, ok := c.GetNarrative(ctx, id)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, n.Strengths)
}
