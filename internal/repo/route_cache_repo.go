package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/finquery/finquery/internal/cache"
	"github.com/finquery/finquery/internal/model"
)

type RouteCacheRepo struct {
	db *sql.DB
}

func NewRouteCacheRepo(db *sql.DB) *RouteCacheRepo {
	return &RouteCacheRepo{db: db}
}

func (r *RouteCacheRepo) Insert(ctx context.Context, rec *model.RouteRecord) error {
	plan, err := json.Marshal(rec.Plan)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO route_cache (id, query_text, embedding, workflow_id, plan, ctime, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.QueryText,
		pgvector.NewVector(rec.Embedding),
		rec.WorkflowID,
		plan,
		rec.Ctime,
		rec.ExpireAt,
	)
	return err
}

func (r *RouteCacheRepo) Nearest(ctx context.Context, embedding []float32, limit int) ([]cache.RouteMatch, error) {
	const query = `
		SELECT id, query_text, embedding, workflow_id, plan, ctime, expire_at,
		       1 - (embedding <=> $1) AS similarity
		FROM route_cache
		WHERE expire_at > $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	probe := pgvector.NewVector(embedding)
	rows, err := r.db.QueryContext(ctx, query, probe, time.Now().Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []cache.RouteMatch
	for rows.Next() {
		var (
			m    cache.RouteMatch
			vec  pgvector.Vector
			blob []byte
		)
		if err := rows.Scan(&m.Record.ID, &m.Record.QueryText, &vec, &m.Record.WorkflowID, &blob, &m.Record.Ctime, &m.Record.ExpireAt, &m.Similarity); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &m.Record.Plan); err != nil {
			return nil, err
		}
		m.Record.Embedding = vec.Slice()
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *RouteCacheRepo) Flush(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM route_cache`)
	return err
}

func (r *RouteCacheRepo) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	const query = `DELETE FROM route_cache WHERE expire_at <= $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
