package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/aidiag/internal/model"
)

// ExportAllDiagnoses builds the export document with every stored result,
// oldest first.
func (s *Store) ExportAllDiagnoses(ctx context.Context) (model.DiagnosisExport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+diagnosisColumns+` FROM diagnoses ORDER BY created_at, diagnosis_id`)
	if err != nil {
		return model.DiagnosisExport{}, fmt.Errorf("list diagnoses: %w", err)
	}
	defer rows.Close()

	results := []model.DiagnosisResult{}
	for rows.Next() {
		r, err := scanDiagnosis(rows)
		if err != nil {
			return model.DiagnosisExport{}, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return model.DiagnosisExport{}, err
	}

	info, err := s.GetInstanceInfo(ctx)
	if err != nil {
		return model.DiagnosisExport{}, fmt.Errorf("read instance info: %w", err)
	}
	source := "sqlite"
	if info.Scheme != "" {
		source += ":" + info.Scheme
	}

	return model.DiagnosisExport{
		ExportedAt: time.Now().UTC(),
		Source:     source,
		Count:      len(results),
		Diagnoses:  results,
	}, nil
}
