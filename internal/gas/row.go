package gas

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/aidiag/internal/model"
)

// Row is one spreadsheet row as exchanged with the script. Per-category
// scores are flattened into score_<category> columns for people reading
// the sheet; the JSON columns keep the exact values for re-assembly.
type Row struct {
	DiagnosisID    string             `json:"diagnosisId"`
	Timestamp      string             `json:"timestamp"`
	CompanyName    string             `json:"companyName"`
	Industry       string             `json:"industry"`
	EmployeeCount  string             `json:"employeeCount"`
	ContactName    string             `json:"contactName"`
	ContactEmail   string             `json:"contactEmail"`
	ContactPhone   string             `json:"contactPhone"`
	Scheme         string             `json:"scheme"`
	OverallScore   int                `json:"overallScore"`
	Grade          string             `json:"grade"`
	MaturityLevel  string             `json:"maturityLevel"`
	Scores         map[string]float64 `json:"scores"`
	CategoryScores string             `json:"categoryScoresJson"`
	Responses      string             `json:"responsesJson"`
}

// ToRow flattens a result into its sheet form.
func ToRow(r model.DiagnosisResult) (Row, error) {
	scores, err := json.Marshal(r.CategoryScores)
	if err != nil {
		return Row{}, fmt.Errorf("marshal category scores: %w", err)
	}
	responses, err := json.Marshal(r.Responses)
	if err != nil {
		return Row{}, fmt.Errorf("marshal responses: %w", err)
	}
	flat := make(map[string]float64, len(r.CategoryScores))
	for _, cs := range r.CategoryScores {
		flat["score_"+string(cs.Category)] = cs.NormalizedScore
	}
	return Row{
		DiagnosisID:    r.DiagnosisID,
		Timestamp:      r.CreatedAt.UTC().Format(time.RFC3339),
		CompanyName:    r.Company.Name,
		Industry:       r.Company.Industry,
		EmployeeCount:  r.Company.EmployeeCount,
		ContactName:    r.Company.ContactName,
		ContactEmail:   r.Company.ContactEmail,
		ContactPhone:   r.Company.ContactPhone,
		Scheme:         r.Scheme,
		OverallScore:   r.OverallScore,
		Grade:          r.Grade,
		MaturityLevel:  r.MaturityLevel,
		Scores:         flat,
		CategoryScores: string(scores),
		Responses:      string(responses),
	}, nil
}

// Result rebuilds the stored result from a row.
func (row Row) Result() (model.DiagnosisResult, error) {
	r := model.DiagnosisResult{
		DiagnosisID: row.DiagnosisID,
		Company: model.Company{
			Name:          row.CompanyName,
			Industry:      row.Industry,
			EmployeeCount: row.EmployeeCount,
			ContactName:   row.ContactName,
			ContactEmail:  row.ContactEmail,
			ContactPhone:  row.ContactPhone,
		},
		Scheme:        row.Scheme,
		OverallScore:  row.OverallScore,
		Grade:         row.Grade,
		MaturityLevel: row.MaturityLevel,
	}
	if row.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, row.Timestamp)
		if err != nil {
			return model.DiagnosisResult{}, fmt.Errorf("row %s: parse timestamp: %w", row.DiagnosisID, err)
		}
		r.CreatedAt = ts
	}
	if row.CategoryScores != "" {
		if err := json.Unmarshal([]byte(row.CategoryScores), &r.CategoryScores); err != nil {
			return model.DiagnosisResult{}, fmt.Errorf("row %s: parse category scores: %w", row.DiagnosisID, err)
		}
	}
	if row.Responses != "" {
		if err := json.Unmarshal([]byte(row.Responses), &r.Responses); err != nil {
			return model.DiagnosisResult{}, fmt.Errorf("row %s: parse responses: %w", row.DiagnosisID, err)
		}
	}
	return r, nil
}

// Summary returns the short form without decoding the JSON columns.
func (row Row) Summary() model.DiagnosisSummary {
	ts, _ := time.Parse(time.RFC3339, row.Timestamp)
	return model.DiagnosisSummary{
		DiagnosisID:   row.DiagnosisID,
		CompanyName:   row.CompanyName,
		ContactEmail:  row.ContactEmail,
		OverallScore:  row.OverallScore,
		Grade:         row.Grade,
		MaturityLevel: row.MaturityLevel,
		SubmittedAt:   ts,
	}
}
