package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// SyncRunRepository stores the run ledger.
type SyncRunRepository interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	Finish(ctx context.Context, run *domain.SyncRun) error
	GetByID(ctx context.Context, id string) (*domain.SyncRun, error)
	List(ctx context.Context, limit int) ([]domain.SyncRun, error)
}

type syncRunRepository struct {
	pool *pgxpool.Pool
}

// NewSyncRunRepository builds repository.
func NewSyncRunRepository(pool *pgxpool.Pool) SyncRunRepository {
	return &syncRunRepository{pool: pool}
}

const syncRunColumns = `id, mode, view_id, status, stats, error, started_at, finished_at`

func (r *syncRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	const query = `
        INSERT INTO sync_runs (id, mode, view_id, status, stats)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING started_at`
	return r.pool.QueryRow(ctx, query,
		run.ID,
		run.Mode,
		run.ViewID,
		run.Status,
		stats,
	).Scan(&run.StartedAt)
}

func (r *syncRunRepository) Finish(ctx context.Context, run *domain.SyncRun) error {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	const query = `
        UPDATE sync_runs SET status=$2, stats=$3, error=$4, finished_at=now()
        WHERE id=$1
        RETURNING finished_at`
	return r.pool.QueryRow(ctx, query, run.ID, run.Status, stats, run.Error).Scan(&run.FinishedAt)
}

func (r *syncRunRepository) GetByID(ctx context.Context, id string) (*domain.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id=$1`
	return scanSyncRun(r.pool.QueryRow(ctx, query, id))
}

func (r *syncRunRepository) List(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *run)
	}
	return result, rows.Err()
}

func scanSyncRun(row pgx.Row) (*domain.SyncRun, error) {
	var (
		run   domain.SyncRun
		stats []byte
	)
	if err := row.Scan(
		&run.ID,
		&run.Mode,
		&run.ViewID,
		&run.Status,
		&stats,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	); err != nil {
		return nil, err
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &run.Stats); err != nil {
			return nil, fmt.Errorf("decode stats of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}
