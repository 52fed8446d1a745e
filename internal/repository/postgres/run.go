package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunRepository implements domain.RunRepository
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new run repository
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

const runColumns = `id, tenant_id, location_id, user_id, start_date, end_date, intent, synthesizer,
	status, final_state, error_kind, error_detail, attempt_count, assignment_count,
	violation_count, elapsed_ms, created_at`

func (r *RunRepository) Create(ctx context.Context, run *domain.GenerationRun) error {
	query := `
		INSERT INTO schedule_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.TenantID,
		run.LocationID,
		run.UserID,
		run.StartDate.Time(),
		run.EndDate.Time(),
		run.Intent,
		run.Synthesizer,
		string(run.Status),
		string(run.FinalState),
		run.ErrorKind,
		run.ErrorDetail,
		run.AttemptCount,
		run.AssignmentCount,
		run.ViolationCount,
		run.ElapsedMs,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule run: %w", err)
	}
	return nil
}

// Get returns nil, nil when the run does not exist.
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*domain.GenerationRun, error) {
	query := `SELECT ` + runColumns + ` FROM schedule_runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) ListByLocation(ctx context.Context, tenantID, locationID string, limit int) ([]domain.GenerationRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM schedule_runs
		WHERE tenant_id = $1 AND location_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, tenantID, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.GenerationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*domain.GenerationRun, error) {
	var (
		run        domain.GenerationRun
		start, end time.Time
		status     string
		state      string
	)
	err := row.Scan(
		&run.ID,
		&run.TenantID,
		&run.LocationID,
		&run.UserID,
		&start,
		&end,
		&run.Intent,
		&run.Synthesizer,
		&status,
		&state,
		&run.ErrorKind,
		&run.ErrorDetail,
		&run.AttemptCount,
		&run.AssignmentCount,
		&run.ViolationCount,
		&run.ElapsedMs,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.StartDate = domain.DateOf(start)
	run.EndDate = domain.DateOf(end)
	run.Status = domain.RunStatus(status)
	run.FinalState = domain.PipelineState(state)
	return &run, nil
}
