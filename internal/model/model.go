package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CategoryKey identifies a group of survey questions.
type CategoryKey string

const (
	CategoryLeadership     CategoryKey = "leadership"
	CategoryInfrastructure CategoryKey = "infrastructure"
	CategoryTalent         CategoryKey = "talent"
	CategoryCulture        CategoryKey = "culture"
	CategoryApplication    CategoryKey = "application"
	CategoryData           CategoryKey = "data"
)

// ErrNotFound is returned by data stores when no diagnosis matches a lookup.
var ErrNotFound = errors.New("diagnosis not found")

// DefaultResponse is the value assumed for an unanswered question.
const DefaultResponse = 2

// Response bounds on the 1-5 Likert scale.
const (
	MinResponse = 1
	MaxResponse = 5
)

// Category is a named group of questions in a catalog.
type Category struct {
	Key    CategoryKey `json:"key"`
	Name   string      `json:"name"`
	NameEn string      `json:"name_en"`
}

// Question is one assessment item.
type Question struct {
	ID       string      `json:"id"`
	Category CategoryKey `json:"category"`
	Weight   float64     `json:"weight"`
	Text     string      `json:"text"`
}

// Responses maps question IDs to 1-5 answers.
//
// Decoding is lenient: numbers and numeric strings are accepted, anything
// else is dropped so the scoring defaults apply.
type Responses map[string]int

// UnmarshalJSON implements json.Unmarshaler.
func (r *Responses) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Responses, len(raw))
	for id, v := range raw {
		if n, ok := parseResponseValue(v); ok {
			out[id] = n
		}
	}
	*r = out
	return nil
}

// parseResponseValue returns the answer clamped to the response scale.
// JSON null and non-numeric values report false.
func parseResponseValue(v json.RawMessage) (int, bool) {
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, false
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Max(MinResponse, math.Min(MaxResponse, f))
	return int(math.Round(f)), true
}

// CategoryScore is the derived score of one category.
type CategoryScore struct {
	Category        CategoryKey `json:"category"`
	Name            string      `json:"name"`
	RawAverage      float64     `json:"raw_average"`
	NormalizedScore float64     `json:"normalized_score"`
	Answered        int         `json:"answered"`
	Defaulted       int         `json:"defaulted"`
}

// Company holds the submitter-provided metadata.
type Company struct {
	Name          string `json:"company_name"`
	Industry      string `json:"industry"`
	EmployeeCount string `json:"employee_count"`
	ContactName   string `json:"contact_name"`
	ContactEmail  string `json:"contact_email"`
	ContactPhone  string `json:"contact_phone,omitempty"`
}

// DiagnosisResult is the immutable outcome of one submission.
type DiagnosisResult struct {
	DiagnosisID    string          `json:"diagnosis_id"`
	Company        Company         `json:"company"`
	Scheme         string          `json:"scheme"`
	CategoryScores []CategoryScore `json:"category_scores"`
	OverallScore   int             `json:"overall_score"`
	Grade          string          `json:"grade"`
	MaturityLevel  string          `json:"maturity_level"`
	Responses      Responses       `json:"responses"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Clone returns a copy that shares no slices or maps with r.
func (r DiagnosisResult) Clone() DiagnosisResult {
	r.CategoryScores = slices.Clone(r.CategoryScores)
	r.Responses = maps.Clone(r.Responses)
	return r
}

// Narrative is prose produced by the narrative generator for a diagnosis.
type Narrative struct {
	Summary         string    `json:"summary"`
	Strengths       []string  `json:"strengths"`
	Weaknesses      []string  `json:"weaknesses"`
	Opportunities   []string  `json:"opportunities"`
	Threats         []string  `json:"threats"`
	Recommendations []string  `json:"recommendations"`
	Roadmap         []string  `json:"roadmap"`
	Model           string    `json:"model"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Clone returns a deep copy of n. A nil narrative clones to nil.
func (n *Narrative) Clone() *Narrative {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Strengths = slices.Clone(n.Strengths)
	cp.Weaknesses = slices.Clone(n.Weaknesses)
	cp.Opportunities = slices.Clone(n.Opportunities)
	cp.Threats = slices.Clone(n.Threats)
	cp.Recommendations = slices.Clone(n.Recommendations)
	cp.Roadmap = slices.Clone(n.Roadmap)
	return &cp
}

// Stage is a step of the submission pipeline recorded by the status tracker.
type Stage string

const (
	StageReceived        Stage = "received"
	StageStored          Stage = "stored"
	StageStoreFailed     Stage = "store_failed"
	StageNotified        Stage = "notified"
	StageNotifyFailed    Stage = "notify_failed"
	StageNarrativeReady  Stage = "narrative_ready"
	StageNarrativeFailed Stage = "narrative_failed"
	StageReportHosted    Stage = "report_hosted"
	StageUploadFailed    Stage = "upload_failed"
)

// StatusSnapshot is the tracker's view of one diagnosis.
type StatusSnapshot struct {
	DiagnosisID string    `json:"diagnosis_id"`
	Stages      []Stage   `json:"stages"`
	ReportURL   string    `json:"report_url,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

// Admin is an operator allowed to use the admin endpoints.
type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type adminCtxKey struct{}

// ContextWithAdmin stores the authenticated admin in context.
func ContextWithAdmin(ctx context.Context, a *Admin) context.Context {
	return context.WithValue(ctx, adminCtxKey{}, a)
}

// AdminFromContext retrieves the authenticated admin (nil if not set).
func AdminFromContext(ctx context.Context) *Admin {
	a, _ := ctx.Value(adminCtxKey{}).(*Admin)
	return a
}

// InstanceInfo describes the scoring setup a data store was written with.
type InstanceInfo struct {
	Scheme         string `json:"scheme"`
	CatalogName    string `json:"catalog_name"`
	CatalogVersion string `json:"catalog_version"`
	AppVersion     string `json:"app_version"`
}
