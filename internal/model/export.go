package model

import "time"

// DiagnosisExport is the top-level JSON structure for exporting stored diagnoses.
type DiagnosisExport struct {
	ExportedAt time.Time         `json:"exported_at"`
	Source     string            `json:"source"`
	Count      int               `json:"count"`
	Diagnoses  []DiagnosisResult `json:"diagnoses"`
}

// DiagnosisSummary is the short form returned by email lookups and admin listings.
type DiagnosisSummary struct {
	DiagnosisID   string    `json:"diagnosis_id"`
	CompanyName   string    `json:"company_name"`
	ContactEmail  string    `json:"contact_email"`
	OverallScore  int       `json:"overall_score"`
	Grade         string    `json:"grade"`
	MaturityLevel string    `json:"maturity_level"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Summary returns the short form of a result.
func (d DiagnosisResult) Summary() DiagnosisSummary {
	return DiagnosisSummary{
		DiagnosisID:   d.DiagnosisID,
		CompanyName:   d.Company.Name,
		ContactEmail:  d.Company.ContactEmail,
		OverallScore:  d.OverallScore,
		Grade:         d.Grade,
		MaturityLevel: d.MaturityLevel,
		SubmittedAt:   d.CreatedAt,
	}
}
