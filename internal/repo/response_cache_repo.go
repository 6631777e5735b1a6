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

type ResponseCacheRepo struct {
	db *sql.DB
}

func NewResponseCacheRepo(db *sql.DB) *ResponseCacheRepo {
	return &ResponseCacheRepo{db: db}
}

func (r *ResponseCacheRepo) Insert(ctx context.Context, rec *model.CacheRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO response_cache (id, query_text, embedding, payload, ctime, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.QueryText,
		pgvector.NewVector(rec.Embedding),
		payload,
		rec.Ctime,
		rec.ExpireAt,
	)
	return err
}

// Nearest runs a cosine ANN probe over non-expired records. The
// similarity column is derived from the same <=> operator the ivfflat
// index orders by, so the reported score and the index ranking agree.
func (r *ResponseCacheRepo) Nearest(ctx context.Context, embedding []float32, limit int) ([]cache.ResponseMatch, error) {
	const query = `
		SELECT id, query_text, embedding, payload, ctime, expire_at,
		       1 - (embedding <=> $1) AS similarity
		FROM response_cache
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
	var matches []cache.ResponseMatch
	for rows.Next() {
		var (
			m    cache.ResponseMatch
			vec  pgvector.Vector
			blob []byte
		)
		if err := rows.Scan(&m.Record.ID, &m.Record.QueryText, &vec, &blob, &m.Record.Ctime, &m.Record.ExpireAt, &m.Similarity); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &m.Record.Payload); err != nil {
			return nil, err
		}
		m.Record.Embedding = vec.Slice()
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *ResponseCacheRepo) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	const query = `DELETE FROM response_cache WHERE expire_at <= $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
