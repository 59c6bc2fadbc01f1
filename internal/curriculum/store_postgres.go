package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. The curriculum is kept as a
// single jsonb value per record.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed curriculum store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) (SaveResult, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	weeks := rec.Weeks
	if weeks == nil {
		weeks = []Week{}
	}
	data, err := json.Marshal(weeks)
	if err != nil {
		return SaveResult{}, fmt.Errorf("marshal curriculum: %w", err)
	}

	var id string
	if rec.ID == "" {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO curricula (title, weeks, updated_at)
			 VALUES ($1, $2::jsonb, NOW())
			 RETURNING id::text`,
			rec.Title,
			string(data),
		).Scan(&id)
		if err != nil {
			return SaveResult{}, fmt.Errorf("insert curriculum: %w", err)
		}
		return SaveResult{Success: true, ID: id, Message: "Curriculum created"}, nil
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO curricula (id, title, weeks, updated_at)
		 VALUES ($1::uuid, $2, $3::jsonb, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, weeks = EXCLUDED.weeks, updated_at = NOW()
		 RETURNING id::text`,
		rec.ID,
		rec.Title,
		string(data),
	).Scan(&id)
	if err != nil {
		return SaveResult{}, fmt.Errorf("upsert curriculum: %w", err)
	}
	return SaveResult{Success: true, ID: id, Message: "Curriculum saved"}, nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var rec Record
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, title, weeks, updated_at
		 FROM curricula
		 WHERE id = $1::uuid
		 LIMIT 1`,
		id,
	).Scan(&rec.ID, &rec.Title, &data, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return Record{}, fmt.Errorf("get curriculum: %w", err)
	}

	if err := json.Unmarshal(data, &rec.Weeks); err != nil {
		return Record{}, fmt.Errorf("decode curriculum: %w", err)
	}
	return rec, nil
}
