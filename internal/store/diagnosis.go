package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/aidiag/internal/model"
)

const diagnosisColumns = `diagnosis_id, created_at, company_name, industry, employee_count,
	contact_name, contact_email, contact_phone, scheme, overall_score, grade,
	maturity_level, category_scores, responses`

// SaveDiagnosis inserts a result, replacing any row with the same id.
func (s *Store) SaveDiagnosis(ctx context.Context, r model.DiagnosisResult) error {
	scores, err := json.Marshal(r.CategoryScores)
	if err != nil {
		return fmt.Errorf("marshal category scores: %w", err)
	}
	responses, err := json.Marshal(r.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO diagnoses (`+diagnosisColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(diagnosis_id) DO UPDATE SET
			created_at = excluded.created_at,
			company_name = excluded.company_name,
			industry = excluded.industry,
			employee_count = excluded.employee_count,
			contact_name = excluded.contact_name,
			contact_email = excluded.contact_email,
			contact_phone = excluded.contact_phone,
			scheme = excluded.scheme,
			overall_score = excluded.overall_score,
			grade = excluded.grade,
			maturity_level = excluded.maturity_level,
			category_scores = excluded.category_scores,
			responses = excluded.responses`,
		r.DiagnosisID, r.CreatedAt.UnixNano(), r.Company.Name, r.Company.Industry, r.Company.EmployeeCount,
		r.Company.ContactName, r.Company.ContactEmail, r.Company.ContactPhone, r.Scheme, r.OverallScore, r.Grade,
		r.MaturityLevel, string(scores), string(responses),
	)
	if err != nil {
		return fmt.Errorf("save diagnosis %s: %w", r.DiagnosisID, err)
	}
	return nil
}

// GetDiagnosis returns the result with the given id or model.ErrNotFound.
func (s *Store) GetDiagnosis(ctx context.Context, id string) (model.DiagnosisResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+diagnosisColumns+` FROM diagnoses WHERE diagnosis_id = ?`, id)
	return scanDiagnosis(row)
}

// FindLatestByEmail returns the most recent result for a contact email,
// compared case-insensitively.
func (s *Store) FindLatestByEmail(ctx context.Context, email string) (model.DiagnosisResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+diagnosisColumns+` FROM diagnoses
		 WHERE lower(contact_email) = lower(trim(?))
		 ORDER BY created_at DESC LIMIT 1`, email)
	return scanDiagnosis(row)
}

// ListDiagnoses returns up to limit summaries, most recent first.
// A non-positive limit returns everything.
func (s *Store) ListDiagnoses(ctx context.Context, limit int) ([]model.DiagnosisSummary, error) {
	query := `SELECT diagnosis_id, company_name, contact_email, overall_score, grade, maturity_level, created_at
		FROM diagnoses ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DiagnosisSummary
	for rows.Next() {
		var d model.DiagnosisSummary
		var created int64
		if err := rows.Scan(&d.DiagnosisID, &d.CompanyName, &d.ContactEmail, &d.OverallScore, &d.Grade, &d.MaturityLevel, &created); err != nil {
			return nil, err
		}
		d.SubmittedAt = time.Unix(0, created).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// DiagnosisCount returns the number of stored results.
func (s *Store) DiagnosisCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diagnoses`).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDiagnosis(sc scanner) (model.DiagnosisResult, error) {
	var (
		r                 model.DiagnosisResult
		created           int64
		scores, responses string
	)
	err := sc.Scan(&r.DiagnosisID, &created, &r.Company.Name, &r.Company.Industry, &r.Company.EmployeeCount,
		&r.Company.ContactName, &r.Company.ContactEmail, &r.Company.ContactPhone, &r.Scheme, &r.OverallScore, &r.Grade,
		&r.MaturityLevel, &scores, &responses)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DiagnosisResult{}, model.ErrNotFound
	}
	if err != nil {
		return model.DiagnosisResult{}, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(scores), &r.CategoryScores); err != nil {
		return model.DiagnosisResult{}, fmt.Errorf("diagnosis %s: decode category scores: %w", r.DiagnosisID, err)
	}
	if err := json.Unmarshal([]byte(responses), &r.Responses); err != nil {
		return model.DiagnosisResult{}, fmt.Errorf("diagnosis %s: decode responses: %w", r.DiagnosisID, err)
	}
	return r, nil
}
