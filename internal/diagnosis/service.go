// Package diagnosis accepts survey submissions, fans them out to the data
// store and the notifier, and serves stored diagnoses back as reports.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/aidiag/internal/cache"
	"github.com/pavelanni/aidiag/internal/i18n"
	"github.com/pavelanni/aidiag/internal/model"
	"github.com/pavelanni/aidiag/internal/report"
	"github.com/pavelanni/aidiag/internal/scoring"
)

// DataStore is the system of record for diagnosis results.
type DataStore interface {
	SaveDiagnosis(ctx context.Context, r model.DiagnosisResult) error
	GetDiagnosis(ctx context.Context, id string) (model.DiagnosisResult, error)
	FindLatestByEmail(ctx context.Context, email string) (model.DiagnosisResult, error)
	ListDiagnoses(ctx context.Context, limit int) ([]model.DiagnosisSummary, error)
}

// Notifier sends the result email.
type Notifier interface {
	SendNotification(ctx context.Context, r model.DiagnosisResult) error
}

// FileStore hosts rendered reports.
type FileStore interface {
	UploadReport(ctx context.Context, fileName, html string) (string, error)
}

// NarrativeGenerator writes report prose for a result.
type NarrativeGenerator interface {
	Generate(ctx context.Context, r model.DiagnosisResult) (*model.Narrative, error)
}

// AccessPolicy decides what a caller must present to read a diagnosis.
type AccessPolicy string

const (
	// IdentifierOnly treats the diagnosis id as a bearer capability.
	IdentifierOnly AccessPolicy = "id"
	// IdentifierAndEmail also requires the contact email to match.
	IdentifierAndEmail AccessPolicy = "id+email"
)

// ParseAccessPolicy maps a config value to an AccessPolicy.
func ParseAccessPolicy(s string) (AccessPolicy, error) {
	switch AccessPolicy(s) {
	case "", IdentifierOnly:
		return IdentifierOnly, nil
	case IdentifierAndEmail:
		return IdentifierAndEmail, nil
	}
	return "", fmt.Errorf("unknown access policy %q (want %q or %q)", s, IdentifierOnly, IdentifierAndEmail)
}

// ResolvedByRecency marks an email lookup that picked the newest of
// possibly several matches.
const ResolvedByRecency = "most_recent"

// Warning codes returned in a Receipt.
const (
	WarnNotifyFailed      = "notification_failed"
	WarnNotifyUnavailable = "notification_not_configured"
)

// Config holds the service settings.
type Config struct {
	Catalog          *scoring.Catalog
	Scheme           scoring.Scheme
	AccessPolicy     AccessPolicy
	Language         string
	StoreTimeout     time.Duration
	NotifyTimeout    time.Duration
	NarrativeTimeout time.Duration
	UploadTimeout    time.Duration
}

// Deps are the collaborators. Store is required; the rest may be nil.
type Deps struct {
	Store     DataStore
	Notifier  Notifier
	Files     FileStore
	Narrative NarrativeGenerator
	Cache     cache.Cache
	Tracker   *Tracker
}

// Receipt is returned to the submitter.
type Receipt struct {
	DiagnosisID   string
	EstimatedTime time.Duration
	Warnings      []string
}

// RetrieveOptions tune a retrieval.
type RetrieveOptions struct {
	// RequireNarrative fails with *QualityGateError instead of serving a
	// data-only report.
	RequireNarrative bool
}

// Report is a stored diagnosis with its freshly assembled HTML.
type Report struct {
	Result     model.DiagnosisResult
	HTML       string
	Kind       report.Kind
	ResolvedBy string
	ReportURL  string
}

// Service is the submission orchestrator and retrieval service.
type Service struct {
	cfg  Config
	deps Deps

	now   func() time.Time
	newID func(time.Time) string

	jobs   sync.WaitGroup
	jobCtx context.Context
	stop   context.CancelFunc
}

// NewService validates the configuration and fills in defaults.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("diagnosis: catalog is required")
	}
	if cfg.Scheme.Policy == nil {
		return nil, errors.New("diagnosis: scoring scheme is required")
	}
	if deps.Store == nil {
		return nil, errors.New("diagnosis: data store is required")
	}
	if cfg.AccessPolicy == "" {
		cfg.AccessPolicy = IdentifierOnly
	}
	if cfg.Language == "" {
		cfg.Language = "ko"
	}
	setDefault(&cfg.StoreTimeout, 10*time.Second)
	setDefault(&cfg.NotifyTimeout, 10*time.Second)
	setDefault(&cfg.NarrativeTimeout, 5*time.Minute)
	setDefault(&cfg.UploadTimeout, time.Minute)
	if deps.Cache == nil {
		deps.Cache = cache.NewMemory(0, 1000)
	}
	if deps.Tracker == nil {
		deps.Tracker = NewTracker(0)
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Service{cfg: cfg, deps: deps, now: time.Now, newID: NewID, jobCtx: ctx, stop: stop}, nil
}

func setDefault(d *time.Duration, v time.Duration) {
	if *d <= 0 {
		*d = v
	}
}

// Catalog returns the active question catalog.
func (s *Service) Catalog() *scoring.Catalog { return s.cfg.Catalog }

// Scheme returns the active scoring scheme.
func (s *Service) Scheme() scoring.Scheme { return s.cfg.Scheme }

// Tracker returns the status tracker.
func (s *Service) Tracker() *Tracker { return s.deps.Tracker }

// Submit validates, scores and stores a submission and sends the
// notification. Only a storage failure fails the call.
func (s *Service) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	if err := sub.Validate(s.cfg.Catalog); err != nil {
		return Receipt{}, err
	}

	now := s.now().UTC().Truncate(time.Second)
	scores := scoring.Compute(sub.Responses, s.cfg.Catalog, s.cfg.Scheme)
	result := model.DiagnosisResult{
		DiagnosisID:    s.newID(now),
		Company:        sub.Company(),
		Scheme:         s.cfg.Scheme.Name,
		CategoryScores: scores.CategoryScores,
		OverallScore:   scores.OverallScore,
		Grade:          scores.Grade,
		MaturityLevel:  scores.MaturityLevel,
		Responses:      sub.Responses,
		CreatedAt:      now,
	}
	id := result.DiagnosisID
	log := slog.With("diagnosis_id", id)
	s.deps.Tracker.Record(id, model.StageReceived)

	tasks := []Task{{Name: "store", Run: func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		defer cancel()
		return s.deps.Store.SaveDiagnosis(ctx, result)
	}}}
	if s.deps.Notifier != nil {
		tasks = append(tasks, Task{Name: "notify", Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
			defer cancel()
			return s.deps.Notifier.SendNotification(ctx, result)
		}})
	}
	outcomes := Settle(context.WithoutCancel(ctx), tasks...)

	var receipt Receipt
	if o, _ := Find(outcomes, "notify"); o.Name == "" {
		receipt.Warnings = append(receipt.Warnings, WarnNotifyUnavailable)
	} else if o.Err != nil {
		log.Warn("notification failed", "error", o.Err, "elapsed", o.Elapsed)
		s.deps.Tracker.Fail(id, model.StageNotifyFailed, o.Err)
		receipt.Warnings = append(receipt.Warnings, WarnNotifyFailed)
	} else {
		s.deps.Tracker.Record(id, model.StageNotified)
	}

	if o, _ := Find(outcomes, "store"); o.Err != nil {
		log.Error("storing diagnosis failed", "error", o.Err, "elapsed", o.Elapsed)
		s.deps.Tracker.Fail(id, model.StageStoreFailed, o.Err)
		return Receipt{}, &CollaboratorError{Op: "store", Err: o.Err}
	}
	s.deps.Tracker.Record(id, model.StageStored)
	s.deps.Cache.PutResult(ctx, result)
	log.Info("diagnosis submitted", "company", result.Company.Name, "score", result.OverallScore, "grade", result.Grade)

	receipt.DiagnosisID = id
	if s.deps.Narrative != nil {
		receipt.EstimatedTime = s.cfg.NarrativeTimeout
		s.startNarrativeJob(result)
	}
	return receipt, nil
}

// startNarrativeJob generates, caches and hosts the AI report in the
// background. Its outcome only shows up in the tracker and the cache.
func (s *Service) startNarrativeJob(result model.DiagnosisResult) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.runNarrativeJob(s.jobCtx, result)
	}()
}

func (s *Service) runNarrativeJob(parent context.Context, result model.DiagnosisResult) {
	id := result.DiagnosisID
	log := slog.With("diagnosis_id", id)

	ctx, cancel := context.WithTimeout(parent, s.cfg.NarrativeTimeout)
	n, err := s.deps.Narrative.Generate(ctx, result)
	cancel()
	if err != nil {
		log.Warn("narrative generation failed, hosting data-only report", "error", err)
		s.deps.Tracker.Fail(id, model.StageNarrativeFailed, err)
		n = nil
	} else {
		s.deps.Cache.PutNarrative(parent, id, n)
		s.deps.Tracker.Record(id, model.StageNarrativeReady)
	}

	if s.deps.Files == nil {
		return
	}
	html, err := report.Assemble(i18n.WithLang(parent, s.cfg.Language), result, n)
	if err != nil {
		log.Error("assembling report failed", "error", err)
		return
	}
	ctx, cancel = context.WithTimeout(parent, s.cfg.UploadTimeout)
	defer cancel()
	url, err := s.deps.Files.UploadReport(ctx, report.FileName(result), html)
	if err != nil {
		log.Warn("report upload failed", "error", err)
		s.deps.Tracker.Fail(id, model.StageUploadFailed, err)
		return
	}
	s.deps.Tracker.SetReportURL(id, url)
	log.Info("report hosted", "url", url, "kind", report.KindOf(n))
}

// Retrieve looks up a diagnosis and assembles its report. With an empty
// id and a non-empty email the newest diagnosis for that email is used.
func (s *Service) Retrieve(ctx context.Context, id, email string, opts RetrieveOptions) (Report, error) {
	id = strings.TrimSpace(id)
	email = strings.TrimSpace(email)

	var (
		result     model.DiagnosisResult
		resolvedBy string
		err        error
	)
	switch {
	case id != "":
		result, err = s.lookup(ctx, id)
		if errors.Is(err, ErrNotFound) && ValidEmail(email) {
			slog.Info("diagnosis id not found, falling back to email lookup", "diagnosis_id", id)
			result, err = s.findByEmail(ctx, email)
			resolvedBy = ResolvedByRecency
		}
	case email != "":
		if !ValidEmail(email) {
			return Report{}, &ValidationError{Field: "email", Code: CodeInvalidFormat, Message: "email is not a valid email address"}
		}
		result, err = s.findByEmail(ctx, email)
		resolvedBy = ResolvedByRecency
	default:
		return Report{}, &ValidationError{Field: "diagnosisId", Code: CodeRequired, Message: "diagnosisId or email is required"}
	}
	if err != nil {
		return Report{}, err
	}

	if resolvedBy == "" && s.cfg.AccessPolicy == IdentifierAndEmail && !strings.EqualFold(result.Company.ContactEmail, email) {
		// indistinguishable from a wrong id
		return Report{}, ErrNotFound
	}

	n, _ := s.deps.Cache.GetNarrative(ctx, result.DiagnosisID)
	if opts.RequireNarrative && n == nil {
		return Report{}, &QualityGateError{DiagnosisID: result.DiagnosisID, Reason: s.narrativeState(result.DiagnosisID)}
	}

	html, err := report.Assemble(ctx, result, n)
	if err != nil {
		return Report{}, fmt.Errorf("assemble report %s: %w", result.DiagnosisID, err)
	}
	rep := Report{Result: result, HTML: html, Kind: report.KindOf(n), ResolvedBy: resolvedBy}
	if snap, ok := s.deps.Tracker.Get(result.DiagnosisID); ok {
		rep.ReportURL = snap.ReportURL
	}
	return rep, nil
}

func (s *Service) narrativeState(id string) string {
	if s.deps.Narrative == nil {
		return "narrative generation is not configured"
	}
	snap, ok := s.deps.Tracker.Get(id)
	if !ok {
		return "no narrative available"
	}
	for _, st := range snap.Stages {
		if st == model.StageNarrativeFailed {
			return "narrative generation failed"
		}
	}
	return "narrative not ready yet"
}

// FindByEmail returns the most recent diagnosis for a contact email.
func (s *Service) FindByEmail(ctx context.Context, email string) (model.DiagnosisSummary, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.DiagnosisSummary{}, &ValidationError{Field: "email", Code: CodeRequired, Message: "email is required"}
	}
	if !ValidEmail(email) {
		return model.DiagnosisSummary{}, &ValidationError{Field: "email", Code: CodeInvalidFormat, Message: "email is not a valid email address"}
	}
	r, err := s.findByEmail(ctx, email)
	if err != nil {
		return model.DiagnosisSummary{}, err
	}
	return r.Summary(), nil
}

// Status returns the tracker snapshot for a diagnosis.
func (s *Service) Status(id string) (model.StatusSnapshot, bool) {
	return s.deps.Tracker.Get(id)
}

// List returns recent diagnoses from the data store.
func (s *Service) List(ctx context.Context, limit int) ([]model.DiagnosisSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	list, err := s.deps.Store.ListDiagnoses(ctx, limit)
	return list, collaboratorErr("list", err)
}

// Resend sends the notification for a stored diagnosis again.
func (s *Service) Resend(ctx context.Context, id string) error {
	if s.deps.Notifier == nil {
		return &CollaboratorError{Op: "notify", Err: errors.New("notification is not configured")}
	}
	result, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()
	if err := s.deps.Notifier.SendNotification(ctx, result); err != nil {
		s.deps.Tracker.Fail(id, model.StageNotifyFailed, err)
		return &CollaboratorError{Op: "notify", Err: err}
	}
	s.deps.Tracker.Record(id, model.StageNotified)
	return nil
}

// Close cancels running background jobs once ctx is done and waits for
// them to return.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.stop()
		return nil
	case <-ctx.Done():
		s.stop()
		<-done
		return ctx.Err()
	}
}

// lookup reads a result from the cache, then the data store.
func (s *Service) lookup(ctx context.Context, id string) (model.DiagnosisResult, error) {
	if r, ok := s.deps.Cache.GetResult(ctx, id); ok {
		return r, nil
	}
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	r, err := s.deps.Store.GetDiagnosis(sctx, id)
	if err != nil {
		return model.DiagnosisResult{}, collaboratorErr("store", err)
	}
	s.deps.Cache.PutResult(ctx, r)
	return r, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (model.DiagnosisResult, error) {
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	r, err := s.deps.Store.FindLatestByEmail(sctx, email)
	if err != nil {
		return model.DiagnosisResult{}, collaboratorErr("store", err)
	}
	return r, nil
}
