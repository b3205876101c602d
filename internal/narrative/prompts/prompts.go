// Package prompts builds the narrative generation prompt from embedded
// text templates.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/aidiag/internal/model"
	"github.com/pavelanni/aidiag/internal/scoring"
)

//go:embed templates/*.txt
var FS embed.FS

// maxFieldRunes caps submitter-provided text placed in a prompt.
const maxFieldRunes = 200

var (
	companyInfoRegex        = regexp.MustCompile(`(?i)</?\s*company-info\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// Variant selects the length and depth of the generated narrative.
type Variant string

const (
	// Concise asks for a short narrative.
	Concise Variant = "concise"
	// Standard is the default variant.
	Standard Variant = "standard"
	// Detailed asks for an executive-level report.
	Detailed Variant = "detailed"
)

var variants = []Variant{Concise, Standard, Detailed}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// Data holds template data for a report prompt.
type Data struct {
	Language      string
	CompanyName   string
	Industry      string
	EmployeeCount string
	OverallScore  int
	MinScore      int
	MaxScore      int
	Grade         string
	MaturityLevel string
	Categories    []CategoryLine
}

// CategoryLine is one category as shown to the model.
type CategoryLine struct {
	Name     string
	Score    string
	Average  string
	Answered int
}

// Set is a parsed collection of prompt templates, one per variant.
type Set struct {
	templates map[Variant]*template.Template
}

// Load parses templates/report_<variant>.txt for every variant in fsys.
func Load(fsys fs.FS) (*Set, error) {
	s := &Set{templates: make(map[Variant]*template.Template, len(variants))}
	for _, v := range variants {
		file := "templates/report_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", file, err)
		}
		tmpl, err := template.New(string(v)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", file, err)
		}
		s.templates[v] = tmpl
	}
	return s, nil
}

// Build renders the prompt for a diagnosis result.
func (s *Set) Build(v Variant, language string, r model.DiagnosisResult) (string, error) {
	tmpl, ok := s.templates[v]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(v))
	}

	data := Data{
		Language:      language,
		CompanyName:   sanitize(r.Company.Name),
		Industry:      sanitize(r.Company.Industry),
		EmployeeCount: sanitize(r.Company.EmployeeCount),
		OverallScore:  r.OverallScore,
		Grade:         r.Grade,
		MaturityLevel: r.MaturityLevel,
	}
	if scheme, err := scoring.SchemeByName(r.Scheme); err == nil {
		data.MinScore, data.MaxScore = scheme.Policy.Range()
	}
	for _, cs := range scoring.Ranked(r.CategoryScores) {
		data.Categories = append(data.Categories, CategoryLine{
			Name:     cs.Name,
			Score:    fmt.Sprintf("%.1f", cs.NormalizedScore),
			Average:  fmt.Sprintf("%.2f", cs.RawAverage),
			Answered: cs.Answered,
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitize strips delimiter tags and truncates submitter text so it cannot
// escape its block in the prompt.
func sanitize(s string) string {
	s = companyInfoRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "[not provided]"
	}
	if utf8.RuneCountInString(s) > maxFieldRunes {
		s = string([]rune(s)[:maxFieldRunes]) + "…"
	}
	return s
}
