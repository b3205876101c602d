package diagnosis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pavelanni/aidiag/internal/model"
)

// fakeStore is an in-memory DataStore with call counters.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]model.DiagnosisResult
	saveErr error
	getErr  error
	block   bool // SaveDiagnosis waits for ctx to end
	delay   time.Duration
	saves   atomic.Int32
	gets    atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]model.DiagnosisResult{}}
}

func (f *fakeStore) SaveDiagnosis(ctx context.Context, r model.DiagnosisResult) error {
	f.saves.Add(1)
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[r.DiagnosisID] = r
	return nil
}

func (f *fakeStore) GetDiagnosis(_ context.Context, id string) (model.DiagnosisResult, error) {
	f.gets.Add(1)
	if f.getErr != nil {
		return model.DiagnosisResult{}, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return model.DiagnosisResult{}, model.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) FindLatestByEmail(_ context.Context, email string) (model.DiagnosisResult, error) {
	if f.getErr != nil {
		return model.DiagnosisResult{}, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest model.DiagnosisResult
	found := false
	for _, r := range f.rows {
		if strings.EqualFold(r.Company.ContactEmail, email) && (!found || r.CreatedAt.After(latest.CreatedAt)) {
			latest, found = r, true
		}
	}
	if !found {
		return model.DiagnosisResult{}, model.ErrNotFound
	}
	return latest, nil
}

func (f *fakeStore) ListDiagnoses(_ context.Context, limit int) ([]model.DiagnosisSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DiagnosisSummary
	for _, r := range f.rows {
		out = append(out, r.Summary())
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeNotifier struct {
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeNotifier) SendNotification(ctx context.Context, _ model.DiagnosisResult) error {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

type fakeNarrator struct {
	narrative *model.Narrative
	err       error
	calls     atomic.Int32
}

func (f *fakeNarrator) Generate(_ context.Context, _ model.DiagnosisResult) (*model.Narrative, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.narrative
	return &cp, nil
}

type fakeFiles struct {
	mu      sync.Mutex
	uploads map[string]string
	err     error
}

func (f *fakeFiles) UploadReport(_ context.Context, name, html string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[name] = html
	return "https://files.example/" + name, nil
}

func (f *fakeFiles) get(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	html, ok := f.uploads[name]
	return html, ok
}

var errBoom = errors.New("boom")
