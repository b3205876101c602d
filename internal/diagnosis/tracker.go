package diagnosis

import (
	"slices"
	"sync"
	"time"

	"github.com/pavelanni/aidiag/internal/model"
)

// DefaultTrackerSize bounds the number of diagnoses a Tracker remembers.
const DefaultTrackerSize = 10000

// Tracker records pipeline stages per diagnosis in process memory. It is
// advisory: entries vanish on restart or eviction.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*model.StatusSnapshot
	max     int
	now     func() time.Time
}

// NewTracker creates a tracker holding at most max entries.
func NewTracker(max int) *Tracker {
	if max <= 0 {
		max = DefaultTrackerSize
	}
	return &Tracker{entries: make(map[string]*model.StatusSnapshot), max: max, now: time.Now}
}

// Record appends stage to the diagnosis history.
func (t *Tracker) Record(id string, stage model.Stage) {
	t.update(id, func(s *model.StatusSnapshot) {
		s.Stages = append(s.Stages, stage)
	})
}

// Fail appends stage and remembers err as the last error.
func (t *Tracker) Fail(id string, stage model.Stage, err error) {
	t.update(id, func(s *model.StatusSnapshot) {
		s.Stages = append(s.Stages, stage)
		if err != nil {
			s.LastError = err.Error()
		}
	})
}

// SetReportURL records where the report is hosted.
func (t *Tracker) SetReportURL(id, url string) {
	t.update(id, func(s *model.StatusSnapshot) {
		s.Stages = append(s.Stages, model.StageReportHosted)
		s.ReportURL = url
	})
}

// Get returns a copy of the snapshot for id.
func (t *Tracker) Get(id string) (model.StatusSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[id]
	if !ok {
		return model.StatusSnapshot{}, false
	}
	cp := *s
	cp.Stages = slices.Clone(s.Stages)
	return cp, true
}

// Len returns the number of tracked diagnoses.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) update(id string, fn func(*model.StatusSnapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[id]
	if !ok {
		if len(t.entries) >= t.max {
			t.evictOldest()
		}
		s = &model.StatusSnapshot{DiagnosisID: id}
		t.entries[id] = s
	}
	fn(s)
	s.UpdatedAt = t.now()
}

func (t *Tracker) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, s := range t.entries {
		if oldestID == "" || s.UpdatedAt.Before(oldest) {
			oldestID, oldest = id, s.UpdatedAt
		}
	}
	delete(t.entries, oldestID)
}
