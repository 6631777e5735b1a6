package repo

import (
	"context"
	"database/sql"

	"github.com/finquery/finquery/internal/model"
)

type ToolCacheRepo struct {
	db *sql.DB
}

func NewToolCacheRepo(db *sql.DB) *ToolCacheRepo {
	return &ToolCacheRepo{db: db}
}

func (r *ToolCacheRepo) Get(ctx context.Context, key string) (*model.ToolOutputRecord, bool, error) {
	const query = `
		SELECT tool_name, param_hash, result, ctime, expire_at
		FROM tool_cache
		WHERE cache_key = $1
	`
	row := r.db.QueryRowContext(ctx, query, key)
	var rec model.ToolOutputRecord
	if err := row.Scan(&rec.ToolName, &rec.ParamHash, &rec.Result, &rec.Ctime, &rec.ExpireAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &rec, true, nil
}

// Put upserts on the canonical key, so storing the same result twice
// keeps exactly one row.
func (r *ToolCacheRepo) Put(ctx context.Context, rec *model.ToolOutputRecord) error {
	const query = `
		INSERT INTO tool_cache (cache_key, tool_name, param_hash, result, ctime, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cache_key) DO UPDATE SET
			result = EXCLUDED.result,
			ctime = EXCLUDED.ctime,
			expire_at = EXCLUDED.expire_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.Key(),
		rec.ToolName,
		rec.ParamHash,
		rec.Result,
		rec.Ctime,
		rec.ExpireAt,
	)
	return err
}

func (r *ToolCacheRepo) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	const query = `DELETE FROM tool_cache WHERE expire_at <= $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
