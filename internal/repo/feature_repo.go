package repo

import (
	"context"
	"database/sql"

	"github.com/finquery/finquery/internal/model"
)

type FeatureRepo struct {
	db *sql.DB
}

func NewFeatureRepo(db *sql.DB) *FeatureRepo {
	return &FeatureRepo{db: db}
}

// Get returns the record even when it is past its freshness window.
// Serving-or-not is the feature store's decision; expired rows are kept
// for diagnostics and stale-tolerant callers.
func (r *FeatureRepo) Get(ctx context.Context, entityID, featureName string) (*model.FeatureRecord, bool, error) {
	const query = `
		SELECT entity_id, feature_name, value, category, computed_at, expire_at
		FROM feature_store
		WHERE entity_id = $1 AND feature_name = $2
	`
	row := r.db.QueryRowContext(ctx, query, entityID, featureName)
	var rec model.FeatureRecord
	if err := row.Scan(&rec.EntityID, &rec.FeatureName, &rec.Value, &rec.Category, &rec.ComputedAt, &rec.ExpireAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &rec, true, nil
}

// Upsert supersedes any previous value for the key. Records are never
// deleted, only overwritten.
func (r *FeatureRepo) Upsert(ctx context.Context, rec *model.FeatureRecord) error {
	const query = `
		INSERT INTO feature_store (entity_id, feature_name, value, category, computed_at, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_id, feature_name) DO UPDATE SET
			value = EXCLUDED.value,
			category = EXCLUDED.category,
			computed_at = EXCLUDED.computed_at,
			expire_at = EXCLUDED.expire_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.EntityID,
		rec.FeatureName,
		rec.Value,
		rec.Category,
		rec.ComputedAt,
		rec.ExpireAt,
	)
	return err
}

func (r *FeatureRepo) ListByEntity(ctx context.Context, entityID string) ([]model.FeatureRecord, error) {
	const query = `
		SELECT entity_id, feature_name, value, category, computed_at, expire_at
		FROM feature_store
		WHERE entity_id = $1
		ORDER BY feature_name
	`
	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.FeatureRecord
	for rows.Next() {
		var rec model.FeatureRecord
		if err := rows.Scan(&rec.EntityID, &rec.FeatureName, &rec.Value, &rec.Category, &rec.ComputedAt, &rec.ExpireAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
