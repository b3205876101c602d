package report

import (
	"context"
	"fmt"

	"github.com/pavelanni/aidiag/internal/i18n"
	"github.com/pavelanni/aidiag/internal/model"
)

// swotDepth is how many categories feed each of strengths and weaknesses.
const swotDepth = 2

type structuredContent struct {
	summary section
	swot    [4]section
	recs    section
	roadmap section
}

// structured builds every prose block from scores and fixed templates.
// ranked must be ordered strongest first.
func structured(ctx context.Context, r model.DiagnosisResult, ranked []model.CategoryScore) structuredContent {
	var out structuredContent
	out.summary = section{Title: i18n.T(ctx, "Summary"), Structured: true}
	out.swot = [4]section{
		{Title: i18n.T(ctx, "Strengths"), Structured: true},
		{Title: i18n.T(ctx, "Weaknesses"), Structured: true},
		{Title: i18n.T(ctx, "Opportunities"), Structured: true},
		{Title: i18n.T(ctx, "Threats"), Structured: true},
	}
	out.recs = section{Title: i18n.T(ctx, "Recommendations"), Structured: true}
	out.roadmap = section{Title: i18n.T(ctx, "Roadmap"), Structured: true}

	if len(ranked) == 0 {
		return out
	}
	best, worst := ranked[0], ranked[len(ranked)-1]

	out.summary.Items = []string{i18n.Td(ctx, "StructuredSummary", map[string]any{
		"Company":  r.Company.Name,
		"Score":    r.OverallScore,
		"Grade":    r.Grade,
		"Maturity": r.MaturityLevel,
		"Best":     best.Name,
		"Worst":    worst.Name,
	})}

	strong := top(ranked, swotDepth)
	weak := bottom(ranked, swotDepth)

	for _, cs := range strong {
		out.swot[0].Items = append(out.swot[0].Items, i18n.Td(ctx, "StrengthItem", scoreData(cs)))
		out.swot[2].Items = appendUnique(out.swot[2].Items, i18n.TOr(ctx, "Opp_"+string(cs.Category), "Opp_default"))
	}
	for _, cs := range weak {
		out.swot[1].Items = append(out.swot[1].Items, i18n.Td(ctx, "WeaknessItem", scoreData(cs)))
		out.swot[3].Items = appendUnique(out.swot[3].Items, i18n.TOr(ctx, "Threat_"+string(cs.Category), "Threat_default"))
		out.recs.Items = appendUnique(out.recs.Items, i18n.TOr(ctx, "Rec_"+string(cs.Category), "Rec_default"))
	}

	if len(out.recs.Items) == 0 {
		out.recs.Items = []string{i18n.TOr(ctx, "Rec_"+string(worst.Category), "Rec_default")}
	}

	focus := worst.Name
	out.roadmap.Items = []string{
		i18n.Td(ctx, "RoadmapPhase1", map[string]any{"Focus": focus}),
		i18n.Td(ctx, "RoadmapPhase2", map[string]any{"Focus": focus}),
		i18n.Td(ctx, "RoadmapPhase3", map[string]any{"Best": best.Name}),
	}
	return out
}

func scoreData(cs model.CategoryScore) map[string]any {
	return map[string]any{"Name": cs.Name, "Score": fmt.Sprintf("%.1f", cs.NormalizedScore)}
}

// top returns up to n strongest categories. With fewer than 2n categories
// the two lists may not overlap: a single category is only a strength.
func top(ranked []model.CategoryScore, n int) []model.CategoryScore {
	if n > (len(ranked)+1)/2 {
		n = (len(ranked) + 1) / 2
	}
	return ranked[:n]
}

func bottom(ranked []model.CategoryScore, n int) []model.CategoryScore {
	if n > len(ranked)/2 {
		n = len(ranked) / 2
	}
	out := make([]model.CategoryScore, 0, n)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		out = append(out, ranked[i])
	}
	return out
}

func appendUnique(items []string, s string) []string {
	for _, it := range items {
		if it == s {
			return items
		}
	}
	return append(items, s)
}
