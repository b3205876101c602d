// Package health polls the service's collaborators in the background and
// keeps the latest result for the /health and /status endpoints.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Overall states of a Report.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
)

// Check is one named probe. A failing critical check makes the service
// unhealthy; any other failure only degrades it.
type Check struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context) error
}

// Pinger is anything that can prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes p.
func PingCheck(name string, critical bool, p Pinger) Check {
	return Check{Name: name, Critical: critical, Run: p.Ping}
}

// ConfiguredCheck fails when ok is false. It is used for credentials and
// optional collaborators that have no endpoint to ping.
func ConfiguredCheck(name string, critical, ok bool) Check {
	return Check{Name: name, Critical: critical, Run: func(context.Context) error {
		if !ok {
			return errors.New("not configured")
		}
		return nil
	}}
}

// MemoryCheck fails when the heap in use exceeds limitMB. read defaults
// to HeapAllocMB.
func MemoryCheck(limitMB int, read func() float64) Check {
	if read == nil {
		read = HeapAllocMB
	}
	return Check{Name: "memory", Run: func(context.Context) error {
		if limitMB <= 0 {
			return nil
		}
		if used := read(); used > float64(limitMB) {
			return fmt.Errorf("heap %.1f MB over limit %d MB", used, limitMB)
		}
		return nil
	}}
}

// HeapAllocMB returns the allocated heap in megabytes.
func HeapAllocMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1 << 20)
}

// Result is the outcome of one check.
type Result struct {
	Name      string        `json:"name"`
	OK        bool          `json:"ok"`
	Critical  bool          `json:"critical"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Report is the monitor's latest view.
type Report struct {
	Status        string    `json:"status"`
	Score         int       `json:"score"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Uptime        string    `json:"uptime"`
	CheckedAt     time.Time `json:"checked_at,omitzero"`
	MemoryMB      float64   `json:"memory_mb"`
	Checks        []Result  `json:"checks"`
}

// Healthy reports whether no critical check is failing.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy || r.Status == StatusDegraded
}

// Config controls polling.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Checks   []Check
}

// Monitor runs the checks on a ticker between Start and Stop.
type Monitor struct {
	cfg     Config
	started time.Time
	now     func() time.Time

	mu     sync.RWMutex
	last   []Result
	lastAt time.Time

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a stopped monitor.
func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Monitor{cfg: cfg, started: time.Now(), now: time.Now}
}

// Start runs the checks once and then every interval until Stop is
// called or ctx ends. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)
	slog.Info("health monitor started", "interval", m.cfg.Interval, "checks", len(m.cfg.Checks))
}

// Stop halts polling and waits for a running round to finish.
func (m *Monitor) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel, m.done = nil, nil
	slog.Info("health monitor stopped")
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow runs every check concurrently, stores the results and returns
// the resulting report.
func (m *Monitor) CheckNow(ctx context.Context) Report {
	results := make([]Result, len(m.cfg.Checks))
	var g errgroup.Group
	for i, c := range m.cfg.Checks {
		g.Go(func() error {
			results[i] = m.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	m.last = results
	m.lastAt = m.now()
	m.mu.Unlock()

	for _, r := range results {
		if !r.OK {
			slog.Warn("health check failed", "check", r.Name, "critical", r.Critical, "error", r.Error)
		}
	}
	return m.Snapshot()
}

func (m *Monitor) run(ctx context.Context, c Check) (res Result) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	start := m.now()
	res = Result{Name: c.Name, Critical: c.Critical}
	defer func() {
		if p := recover(); p != nil {
			res.OK, res.Error = false, fmt.Sprintf("panic: %v", p)
		}
		res.Latency = m.now().Sub(start)
		res.CheckedAt = m.now()
	}()
	if err := c.Run(ctx); err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}

// Snapshot returns the latest report without running any check.
func (m *Monitor) Snapshot() Report {
	m.mu.RLock()
	results := append([]Result(nil), m.last...)
	at := m.lastAt
	m.mu.RUnlock()

	uptime := m.now().Sub(m.started)
	rep := Report{
		StartedAt:     m.started,
		UptimeSeconds: int64(uptime / time.Second),
		Uptime:        uptime.Truncate(time.Second).String(),
		CheckedAt:     at,
		MemoryMB:      HeapAllocMB(),
		Checks:        results,
	}
	rep.Status, rep.Score = Summarize(results)
	return rep
}

// Summarize derives the overall status and a 0-100 score from results.
// Critical checks count double.
func Summarize(results []Result) (status string, score int) {
	if len(results) == 0 {
		return StatusUnknown, 0
	}
	var total, passed int
	status = StatusHealthy
	for _, r := range results {
		w := 1
		if r.Critical {
			w = 2
		}
		total += w
		if r.OK {
			passed += w
			continue
		}
		if r.Critical {
			status = StatusUnhealthy
		} else if status == StatusHealthy {
			status = StatusDegraded
		}
	}
	return status, (passed*100 + total/2) / total
}
