package store

import (
	"context"
	"database/sql"

	"github.com/pavelanni/aidiag/internal/model"
)

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetInstanceInfo stores all InstanceInfo fields as metadata rows.
func (s *Store) SetInstanceInfo(ctx context.Context, info model.InstanceInfo) error {
	pairs := []struct{ k, v string }{
		{"scheme", info.Scheme},
		{"catalog_name", info.CatalogName},
		{"catalog_version", info.CatalogVersion},
		{"app_version", info.AppVersion},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(ctx, p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetInstanceInfo reads all InstanceInfo fields from metadata.
func (s *Store) GetInstanceInfo(ctx context.Context) (model.InstanceInfo, error) {
	var info model.InstanceInfo
	var err error

	if info.Scheme, err = s.GetMetadata(ctx, "scheme"); err != nil {
		return info, err
	}
	if info.CatalogName, err = s.GetMetadata(ctx, "catalog_name"); err != nil {
		return info, err
	}
	if info.CatalogVersion, err = s.GetMetadata(ctx, "catalog_version"); err != nil {
		return info, err
	}
	if info.AppVersion, err = s.GetMetadata(ctx, "app_version"); err != nil {
		return info, err
	}
	return info, nil
}
