// Package report assembles the HTML diagnosis report from a stored result
// and optional narrative text.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/aidiag/internal/i18n"
	"github.com/pavelanni/aidiag/internal/model"
	"github.com/pavelanni/aidiag/internal/scoring"
)

// Kind tells whether a report carries AI narrative.
type Kind string

const (
	KindStructured Kind = "structured"
	KindAI         Kind = "ai"
)

// KindOf returns the kind of report produced for the given narrative.
func KindOf(n *model.Narrative) Kind {
	if n == nil {
		return KindStructured
	}
	return KindAI
}

// row is one line of the category table.
type row struct {
	Name      string
	Average   string
	Score     string
	Answered  string
	BarWidth  int
	Weakest   bool
	Strongest bool
}

// section is a list block with its provenance.
type section struct {
	Title      string
	Items      []string
	Structured bool
}

// document is the view model rendered by the components in view.go.
type document struct {
	Lang        string
	Title       string
	Kind        Kind
	Notice      string
	DiagnosisID string
	Company     [][2]string
	Overall     int
	Grade       string
	Maturity    string
	ScaleNote   string
	NextTier    string
	Labels      labels
	Rows        []row
	Summary     section
	SWOT        [4]section
	Recs        section
	Roadmap     section
	GeneratedAt string
	Footer      string
}

type labels struct {
	CompanyInfo, OverallResult, OverallScore, Grade, Maturity string
	CategoryBreakdown, Category, Average, Score, Answered     string
	SWOT, GeneratedAt, DiagnosisID                            string
}

// build derives the view model. It is pure apart from reading translations.
func build(ctx context.Context, r model.DiagnosisResult, n *model.Narrative, now time.Time) document {
	t := func(id string) string { return i18n.T(ctx, id) }

	doc := document{
		Lang:        i18n.T(ctx, "LangCode"),
		Title:       t("ReportTitle"),
		Kind:        KindOf(n),
		DiagnosisID: r.DiagnosisID,
		Overall:     r.OverallScore,
		Grade:       r.Grade,
		Maturity:    r.MaturityLevel,
		GeneratedAt: now.Format("2006-01-02 15:04"),
		Footer:      t("Footer"),
		Labels: labels{
			CompanyInfo:       t("CompanyInfo"),
			OverallResult:     t("OverallResult"),
			OverallScore:      t("OverallScore"),
			Grade:             t("Grade"),
			Maturity:          t("MaturityLevel"),
			CategoryBreakdown: t("CategoryBreakdown"),
			Category:          t("Category"),
			Average:           t("Average"),
			Score:             t("Score"),
			Answered:          t("Answered"),
			SWOT:              t("SWOT"),
			GeneratedAt:       t("GeneratedAt"),
			DiagnosisID:       t("DiagnosisID"),
		},
	}
	if doc.Lang == "LangCode" {
		doc.Lang = "ko"
	}

	doc.Company = [][2]string{{t("CompanyName"), r.Company.Name}}
	for _, kv := range [][2]string{
		{t("Industry"), r.Company.Industry},
		{t("EmployeeCount"), r.Company.EmployeeCount},
		{t("ContactName"), r.Company.ContactName},
		{t("SubmittedAt"), formatTime(r.CreatedAt)},
	} {
		if kv[1] != "" {
			doc.Company = append(doc.Company, kv)
		}
	}

	maxScale := 100.0
	if scheme, err := scoring.SchemeByName(r.Scheme); err == nil {
		lo, hi := scheme.Policy.Range()
		maxScale = float64(hi)
		doc.ScaleNote = i18n.Td(ctx, "ScaleNote", map[string]any{"Min": lo, "Max": hi})
		if label, pts, ok := scheme.Maturity.Next(r.OverallScore); ok {
			doc.NextTier = i18n.Td(ctx, "NextTier", map[string]any{"Label": label, "Points": pts})
		} else {
			doc.NextTier = t("TopTier")
		}
	}

	ranked := scoring.Ranked(r.CategoryScores)
	var best, worst model.CategoryScore
	if len(ranked) > 0 {
		best, worst = ranked[0], ranked[len(ranked)-1]
	}
	for _, cs := range r.CategoryScores {
		width := int(cs.NormalizedScore / maxScale * 100)
		if width > 100 {
			width = 100
		}
		if width < 0 {
			width = 0
		}
		doc.Rows = append(doc.Rows, row{
			Name:      cs.Name,
			Average:   fmt.Sprintf("%.2f", cs.RawAverage),
			Score:     fmt.Sprintf("%.1f", cs.NormalizedScore),
			Answered:  fmt.Sprintf("%d/%d", cs.Answered, cs.Answered+cs.Defaulted),
			BarWidth:  width,
			Strongest: len(ranked) > 1 && cs.Category == best.Category,
			Weakest:   len(ranked) > 1 && cs.Category == worst.Category,
		})
	}

	s := structured(ctx, r, ranked)
	if n == nil {
		doc.Notice = t("DataOnlyNotice")
		doc.Summary = s.summary
		doc.SWOT = s.swot
		doc.Recs = s.recs
		doc.Roadmap = s.roadmap
		return doc
	}

	doc.Notice = i18n.Td(ctx, "AINarrativeNotice", map[string]any{"Model": n.Model})
	doc.Summary = prefer(section{Title: s.summary.Title, Items: nonEmpty(n.Summary)}, s.summary)
	doc.SWOT = [4]section{
		prefer(section{Title: s.swot[0].Title, Items: n.Strengths}, s.swot[0]),
		prefer(section{Title: s.swot[1].Title, Items: n.Weaknesses}, s.swot[1]),
		prefer(section{Title: s.swot[2].Title, Items: n.Opportunities}, s.swot[2]),
		prefer(section{Title: s.swot[3].Title, Items: n.Threats}, s.swot[3]),
	}
	doc.Recs = prefer(section{Title: s.recs.Title, Items: n.Recommendations}, s.recs)
	doc.Roadmap = prefer(section{Title: s.roadmap.Title, Items: n.Roadmap}, s.roadmap)
	return doc
}

// prefer returns the narrative section unless it is empty, in which case
// the structured section is used and stays marked as structured.
func prefer(narr, fallback section) section {
	if len(narr.Items) == 0 {
		return fallback
	}
	return narr
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
