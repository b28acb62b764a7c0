package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunRecord is one row of the optional audit log: a single Check invocation
// against one problem package.
type RunRecord struct {
	ID            int64
	RunID         string
	ShortName     string
	StartedAt     time.Time
	DurationMS    int64
	ErrorCount    int
	WarningCount  int
	Passed        bool
}

// SubmissionOutcome is one reference-submission verdict recorded for a run.
type SubmissionOutcome struct {
	RunID            string
	SubmissionName   string
	ExpectedVerdict  string
	ObservedVerdict  string
	Matched          bool
}

// HistoryRepository persists Check run outcomes for later inspection, e.g.
// by cmd/reportserver. Entirely optional: a verification run proceeds
// identically whether or not a repository is wired in.
type HistoryRepository interface {
	RecordRun(ctx context.Context, run RunRecord, outcomes []SubmissionOutcome) error
	FindRun(ctx context.Context, runID string) (*RunRecord, []SubmissionOutcome, error)
	ListRuns(ctx context.Context, shortName string, page, perPage int) ([]RunRecord, int, error)
}

// PgHistoryRepository implements HistoryRepository using pgxpool.
type PgHistoryRepository struct {
	db *pgxpool.Pool
}

func NewPgHistoryRepository(db *pgxpool.Pool) *PgHistoryRepository {
	return &PgHistoryRepository{db: db}
}

// RecordRun inserts the run and its per-submission outcomes in a single
// transaction, mirroring the teacher's save-result-plus-details pattern.
func (r *PgHistoryRepository) RecordRun(ctx context.Context, run RunRecord, outcomes []SubmissionOutcome) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `INSERT INTO check_runs (run_id, short_name, started_at, duration_ms, error_count, warning_count, passed)
               VALUES ($1,$2,$3,$4,$5,$6,$7)
               ON CONFLICT (run_id) DO UPDATE SET
                 duration_ms=EXCLUDED.duration_ms,
                 error_count=EXCLUDED.error_count,
                 warning_count=EXCLUDED.warning_count,
                 passed=EXCLUDED.passed`
	if _, err := tx.Exec(ctx, q, run.RunID, run.ShortName, run.StartedAt, run.DurationMS, run.ErrorCount, run.WarningCount, run.Passed); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM check_run_submissions WHERE run_id=$1`, run.RunID); err != nil {
		return err
	}
	for _, o := range outcomes {
		const ins = `INSERT INTO check_run_submissions (run_id, submission_name, expected_verdict, observed_verdict, matched)
                     VALUES ($1,$2,$3,$4,$5)`
		if _, err := tx.Exec(ctx, ins, o.RunID, o.SubmissionName, o.ExpectedVerdict, o.ObservedVerdict, o.Matched); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PgHistoryRepository) FindRun(ctx context.Context, runID string) (*RunRecord, []SubmissionOutcome, error) {
	const q = `SELECT id, run_id, short_name, started_at, duration_ms, error_count, warning_count, passed
               FROM check_runs WHERE run_id=$1`
	var run RunRecord
	if err := r.db.QueryRow(ctx, q, runID).Scan(&run.ID, &run.RunID, &run.ShortName, &run.StartedAt, &run.DurationMS, &run.ErrorCount, &run.WarningCount, &run.Passed); err != nil {
		return nil, nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT run_id, submission_name, expected_verdict, observed_verdict, matched
                                  FROM check_run_submissions WHERE run_id=$1 ORDER BY submission_name`, runID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var outcomes []SubmissionOutcome
	for rows.Next() {
		var o SubmissionOutcome
		if err := rows.Scan(&o.RunID, &o.SubmissionName, &o.ExpectedVerdict, &o.ObservedVerdict, &o.Matched); err != nil {
			return nil, nil, err
		}
		outcomes = append(outcomes, o)
	}
	return &run, outcomes, rows.Err()
}

func (r *PgHistoryRepository) ListRuns(ctx context.Context, shortName string, page, perPage int) ([]RunRecord, int, error) {
	if page <= 0 || perPage <= 0 {
		page, perPage = 1, 20
	}
	const countQ = `SELECT COUNT(*) FROM check_runs WHERE short_name=$1`
	var total int
	if err := r.db.QueryRow(ctx, countQ, shortName).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, run_id, short_name, started_at, duration_ms, error_count, warning_count, passed
                                  FROM check_runs WHERE short_name=$1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`,
		shortName, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]RunRecord, 0, perPage)
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.RunID, &run.ShortName, &run.StartedAt, &run.DurationMS, &run.ErrorCount, &run.WarningCount, &run.Passed); err != nil {
			return nil, 0, err
		}
		items = append(items, run)
	}
	return items, total, rows.Err()
}

// NewHistoryPool connects a pgxpool using the same URL-based configuration
// style as the rest of probcheck's optional backends.
func NewHistoryPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}
