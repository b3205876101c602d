package diagnosis

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pavelanni/aidiag/internal/model"
	"github.com/pavelanni/aidiag/internal/scoring"
)

// IDPrefix starts every diagnosis id.
const IDPrefix = "AIDIAG"

const maxTextRunes = 200

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Submission is the payload of a new diagnosis request.
type Submission struct {
	CompanyName    string          `json:"companyName"`
	ContactName    string          `json:"contactName"`
	ContactEmail   string          `json:"contactEmail"`
	ContactPhone   string          `json:"contactPhone,omitempty"`
	Industry       string          `json:"industry"`
	EmployeeCount  string          `json:"employeeCount"`
	Responses      model.Responses `json:"responses"`
	PrivacyConsent bool            `json:"privacyConsent"`
}

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// Validate checks required fields, the email format, consent and the
// response set. When catalog is non-nil at least one response must name
// a question in it. It never calls out of process.
func (s Submission) Validate(catalog *scoring.Catalog) error {
	required := []struct{ field, value string }{
		{"companyName", s.CompanyName},
		{"contactName", s.ContactName},
		{"contactEmail", s.ContactEmail},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Code: CodeRequired, Message: r.field + " is required"}
		}
	}
	for _, f := range []struct{ field, value string }{
		{"companyName", s.CompanyName},
		{"contactName", s.ContactName},
		{"industry", s.Industry},
		{"employeeCount", s.EmployeeCount},
		{"contactPhone", s.ContactPhone},
	} {
		if utf8.RuneCountInString(f.value) > maxTextRunes {
			return &ValidationError{Field: f.field, Code: CodeTooLong, Message: f.field + " is too long"}
		}
	}
	if !ValidEmail(s.ContactEmail) {
		return &ValidationError{Field: "contactEmail", Code: CodeInvalidFormat, Message: "contactEmail is not a valid email address"}
	}
	if !s.PrivacyConsent {
		return &ValidationError{Field: "privacyConsent", Code: CodeConsent, Message: "consent to data processing is required"}
	}
	if len(s.Responses) == 0 {
		return &ValidationError{Field: "responses", Code: CodeEmptyResponses, Message: "at least one survey response is required"}
	}
	if catalog != nil && catalog.Known(s.Responses) == 0 {
		return &ValidationError{Field: "responses", Code: CodeEmptyResponses, Message: "no response matches a question in the survey"}
	}
	return nil
}

// Company returns the trimmed company metadata.
func (s Submission) Company() model.Company {
	return model.Company{
		Name:          strings.TrimSpace(s.CompanyName),
		Industry:      strings.TrimSpace(s.Industry),
		EmployeeCount: strings.TrimSpace(s.EmployeeCount),
		ContactName:   strings.TrimSpace(s.ContactName),
		ContactEmail:  strings.TrimSpace(s.ContactEmail),
		ContactPhone:  strings.TrimSpace(s.ContactPhone),
	}
}

// NewID returns AIDIAG-<yyyymmddHHMMSS>-<8 hex>. Uniqueness is
// probabilistic; collisions are not checked.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return IDPrefix + "-" + now.UTC().Format("20060102150405") + "-" + suffix
}
