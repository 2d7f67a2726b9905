package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRun is one row of run history.
type ReportRun struct {
	RunID          uuid.UUID  `json:"run_id"`
	SearchID       string     `json:"search_id"`
	Status         string     `json:"status"` // running, completed, failed
	ItemsFound     int        `json:"items_found"`
	ItemsDeduped   int        `json:"items_deduped"`
	KeywordsFailed int        `json:"keywords_failed"`
	EmailSent      bool       `json:"email_sent"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) StartRun(ctx context.Context, runID uuid.UUID, searchID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO report_runs (run_id, search_id, status) VALUES ($1, $2, 'running')`,
		runID, searchID,
	)
	if err != nil {
		return fmt.Errorf("inserting run record: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run ReportRun) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE report_runs SET
			status = $1,
			items_found = $2,
			items_deduped = $3,
			keywords_failed = $4,
			email_sent = $5,
			error = NULLIF($6, ''),
			completed_at = NOW()
		WHERE run_id = $7`,
		run.Status, run.ItemsFound, run.ItemsDeduped, run.KeywordsFailed,
		run.EmailSent, run.Error, run.RunID,
	)
	if err != nil {
		return fmt.Errorf("updating run record: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]ReportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, search_id, status, items_found, items_deduped,
		        keywords_failed, email_sent, COALESCE(error, ''), started_at, completed_at
		 FROM report_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []ReportRun
	for rows.Next() {
		var r ReportRun
		if err := rows.Scan(
			&r.RunID, &r.SearchID, &r.Status, &r.ItemsFound, &r.ItemsDeduped,
			&r.KeywordsFailed, &r.EmailSent, &r.Error, &r.StartedAt, &r.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
