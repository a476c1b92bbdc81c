package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

// StoredResult is a scored essay with its storage metadata.
type StoredResult struct {
	ResultID string             `json:"result_id"`
	BatchID  string             `json:"batch_id,omitempty"`
	Result   domain.ScoredEssay `json:"result"`
}

// ResultRepo persists scored essays.
type ResultRepo struct {
	db *sql.DB
}

// NewResultRepo creates a repository on db.
func NewResultRepo(db *sql.DB) *ResultRepo { return &ResultRepo{db: db} }

// Save stores a result and returns its generated result ID.
func (r *ResultRepo) Save(ctx context.Context, batchID string, s *domain.ScoredEssay) (string, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	scoredAt := s.ScoredAt
	if scoredAt.IsZero() {
		scoredAt = time.Now()
	}

	id := uuid.NewString()
	const q = `INSERT INTO scored_essays
(result_id, essay_id, batch_id, rubric, scale, overall_score, final_score, band, result_json, scored_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		id,
		s.EssayID,
		batchID,
		int(s.Rubric),
		int(s.Scale),
		s.Overall,
		s.Final,
		s.Band,
		string(body),
		scoredAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("save result: %w", err)
	}
	return id, nil
}

// SaveBatch stores every result of a batch in one transaction.
func (r *ResultRepo) SaveBatch(ctx context.Context, batchID string, results []domain.ScoredEssay) (ids []string, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO scored_essays
(result_id, essay_id, batch_id, rubric, scale, overall_score, final_score, band, result_json, scored_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	ids = make([]string, 0, len(results))
	for i := range results {
		s := &results[i]
		body, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encode result %s: %w", s.EssayID, err)
		}
		id := uuid.NewString()
		if _, err := tx.ExecContext(ctx, q,
			id, s.EssayID, batchID, int(s.Rubric), int(s.Scale),
			s.Overall, s.Final, s.Band, string(body), s.ScoredAt.UnixNano(),
		); err != nil {
			return nil, fmt.Errorf("save result %s: %w", s.EssayID, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

// Get returns a stored result by ID.
func (r *ResultRepo) Get(ctx context.Context, resultID string) (*StoredResult, error) {
	const q = `SELECT result_id, batch_id, result_json FROM scored_essays WHERE result_id = ?`
	row := r.db.QueryRowContext(ctx, q, resultID)
	out, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: result %s", ErrNotFound, resultID)
	}
	return out, err
}

// ListRecent returns up to limit results, newest first.
func (r *ResultRepo) ListRecent(ctx context.Context, limit int) ([]StoredResult, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT result_id, batch_id, result_json FROM scored_essays
ORDER BY scored_at DESC, rowid DESC LIMIT ?`
	return r.list(ctx, q, limit)
}

// ListBatch returns a batch's results in insertion order.
func (r *ResultRepo) ListBatch(ctx context.Context, batchID string) ([]StoredResult, error) {
	const q = `SELECT result_id, batch_id, result_json FROM scored_essays
WHERE batch_id = ? ORDER BY rowid ASC`
	return r.list(ctx, q, batchID)
}

func (r *ResultRepo) list(ctx context.Context, q string, args ...any) ([]StoredResult, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		sr, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (*StoredResult, error) {
	var (
		out  StoredResult
		body string
	)
	if err := s.Scan(&out.ResultID, &out.BatchID, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &out.Result); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", out.ResultID, err)
	}
	return &out, nil
}
