package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/aidiag/internal/model"
)

// Assemble renders the report for a stored result. narrative may be nil,
// in which case the report is built from scores and templates only and is
// labelled as data-only.
func Assemble(ctx context.Context, r model.DiagnosisResult, narrative *model.Narrative) (string, error) {
	return AssembleAt(ctx, r, narrative, time.Now())
}

// AssembleAt is Assemble with an explicit generation time.
func AssembleAt(ctx context.Context, r model.DiagnosisResult, narrative *model.Narrative, now time.Time) (string, error) {
	if r.DiagnosisID == "" {
		return "", errors.New("report: result has no diagnosis id")
	}
	doc := build(ctx, r, narrative, now)

	var sb strings.Builder
	if err := page(doc).Render(ctx, &sb); err != nil {
		return "", fmt.Errorf("render report %s: %w", r.DiagnosisID, err)
	}
	return sb.String(), nil
}

// FileName is the name used when the report is handed to the file store.
func FileName(r model.DiagnosisResult) string {
	return "AI_Diagnosis_" + r.DiagnosisID + ".html"
}
