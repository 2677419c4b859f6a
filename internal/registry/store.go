package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reframe/internal/config"
)

// Store manages registry persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the registry database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.RegistryPath())
}

// OpenPath opens the registry database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// UpsertJob registers a job or refreshes its paths, keeping its counters.
func (s *Store) UpsertJob(ctx context.Context, job Job) error {
	if strings.TrimSpace(job.Key) == "" {
		return errors.New("upsert job: empty key")
	}
	if job.State == "" {
		job.State = StatePending
	}
	now := formatTime(time.Now())
	return s.exec(ctx,
		`INSERT INTO jobs (job_key, subject_path, target_path, output_path, work_dir, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_key) DO UPDATE SET
            subject_path = excluded.subject_path,
            target_path = excluded.target_path,
            output_path = excluded.output_path,
            work_dir = excluded.work_dir,
            state = excluded.state,
            updated_at = excluded.updated_at`,
		job.Key, job.SubjectPath, job.TargetPath, nullableString(job.OutputPath), job.WorkDir, string(job.State), now, now,
	)
}

// SetState records a state transition and the error message that caused it, if any.
func (s *Store) SetState(ctx context.Context, key string, state State, message string) error {
	return s.exec(ctx,
		"UPDATE jobs SET state = ?, error_message = ?, updated_at = ? WHERE job_key = ?",
		string(state), nullableString(message), formatTime(time.Now()), key,
	)
}

// UpdateProgress stores the frame counters of a job.
func (s *Store) UpdateProgress(ctx context.Context, key string, total, done int) error {
	return s.exec(ctx,
		"UPDATE jobs SET frames_total = ?, frames_done = ?, updated_at = ? WHERE job_key = ?",
		total, done, formatTime(time.Now()), key,
	)
}

// GetJob fetches a job by key. It returns nil, nil when the job is unknown.
func (s *Store) GetJob(ctx context.Context, key string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+jobColumns+" FROM jobs WHERE job_key = ?", key)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", key, err)
	}
	return job, nil
}

// ListJobs returns jobs, most recently updated first, optionally filtered by state.
func (s *Store) ListJobs(ctx context.Context, states ...State) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, string(state))
		}
		query += " WHERE state IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY updated_at DESC, job_key"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RemoveJob deletes a job and its run history.
func (s *Store) RemoveJob(ctx context.Context, key string) (bool, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, "DELETE FROM jobs WHERE job_key = ?", key)
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("remove job %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Stats counts jobs per state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT state, COUNT(1) FROM jobs GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[State(state)] = count
	}
	return stats, rows.Err()
}

// StartRun records the beginning of a run and points the job at it.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if err := s.exec(ctx,
		"INSERT INTO runs (run_id, job_key, decision, workers, started_at) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.JobKey, run.Decision, run.Workers, formatTime(run.StartedAt),
	); err != nil {
		return err
	}
	return s.exec(ctx, "UPDATE jobs SET last_run_id = ?, updated_at = ? WHERE job_key = ?",
		run.ID, formatTime(time.Now()), run.JobKey)
}

// FinishRun stores the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, id string, outcome State, processed, failedChunks int, message string) error {
	return s.exec(ctx,
		`UPDATE runs SET outcome = ?, processed = ?, failed_chunks = ?, error_message = ?, finished_at = ?
         WHERE run_id = ?`,
		string(outcome), processed, failedChunks, nullableString(message), formatTime(time.Now()), id,
	)
}

// Runs lists the most recent runs of a job, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, key string, limit int) ([]*Run, error) {
	query := `SELECT run_id, job_key, decision, workers, processed, failed_chunks, outcome, error_message, started_at, finished_at
              FROM runs WHERE job_key = ? ORDER BY started_at DESC`
	args := []any{key}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run         Run
			outcome     sql.NullString
			message     sql.NullString
			startedRaw  string
			finishedRaw sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.JobKey, &run.Decision, &run.Workers, &run.Processed, &run.FailedChunks,
			&outcome, &message, &startedRaw, &finishedRaw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Outcome = State(outcome.String)
		run.ErrorMessage = message.String
		run.StartedAt = parseTime(startedRaw)
		if finishedRaw.Valid && finishedRaw.String != "" {
			finished := parseTime(finishedRaw.String)
			run.FinishedAt = &finished
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

const jobColumns = "job_key, subject_path, target_path, output_path, work_dir, state, frames_total, frames_done, last_run_id, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job        Job
		output     sql.NullString
		state      string
		lastRun    sql.NullString
		message    sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&job.Key, &job.SubjectPath, &job.TargetPath, &output, &job.WorkDir, &state,
		&job.FramesTotal, &job.FramesDone, &lastRun, &message, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	job.OutputPath = output.String
	job.State = State(state)
	job.LastRunID = lastRun.String
	job.ErrorMessage = message.String
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	return &job, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
