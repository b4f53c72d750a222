package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"studiofront/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	status        TEXT NOT NULL,
	payload       TEXT,
	result        TEXT,
	error_message TEXT NOT NULL DEFAULT '',
	error_code    TEXT NOT NULL DEFAULT '',
	simulated     INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	position      INTEGER NOT NULL
);
`

// Store is the best-effort local mirror of tracked jobs, backed by an
// embedded SQLite database. It is not authoritative; the backend remains the
// source of truth where one is reachable.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open initializes or connects to the ledger database at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save rewrites the full mirror in one transaction.
func (s *Store) Save(jobs []*domain.Job) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin ledger save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM jobs`); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO jobs
		(id, kind, status, payload, result, error_message, error_code, simulated, created_at, updated_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for i, job := range jobs {
		var resultJSON []byte
		if job.Result != nil {
			if resultJSON, err = json.Marshal(job.Result); err != nil {
				return fmt.Errorf("encode result for job %s: %w", job.ID, err)
			}
		}
		simulated := 0
		if job.Simulated {
			simulated = 1
		}
		if _, err := stmt.Exec(
			job.ID,
			string(job.Kind),
			string(job.Status),
			string(job.PayloadJSON),
			string(resultJSON),
			job.ErrorMessage,
			job.ErrorCode,
			simulated,
			job.CreatedAt.UTC().Format(time.RFC3339Nano),
			job.UpdatedAt.UTC().Format(time.RFC3339Nano),
			i,
		); err != nil {
			return fmt.Errorf("insert job %s: %w", job.ID, err)
		}
	}
	return tx.Commit()
}

// Load returns the mirrored jobs in save order. A malformed row means the
// mirror cannot be trusted, so the whole set is dropped: the error is logged
// and an empty slice returned rather than a partial view or a panic.
func (s *Store) Load() ([]*domain.Job, error) {
	rows, err := s.db.Query(`SELECT id, kind, status, payload, result, error_message, error_code, simulated, created_at, updated_at
		FROM jobs ORDER BY position ASC`)
	if err != nil {
		s.logger.Error().Err(err).Msg("ledger query failed")
		return nil, nil
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			s.logger.Error().Err(err).Msg("ledger row corrupt, discarding mirror")
			return nil, nil
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error().Err(err).Msg("ledger iteration failed, discarding mirror")
		return nil, nil
	}
	return jobs, nil
}

func scanJob(rows *sql.Rows) (*domain.Job, error) {
	var (
		job              domain.Job
		kind, status     string
		payload, result  string
		simulated        int
		created, updated string
	)
	if err := rows.Scan(&job.ID, &kind, &status, &payload, &result,
		&job.ErrorMessage, &job.ErrorCode, &simulated, &created, &updated); err != nil {
		return nil, err
	}
	job.Kind = domain.JobKind(kind)
	if !job.Kind.Valid() {
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
	job.Status = domain.JobStatus(status)
	job.Simulated = simulated != 0
	if payload != "" {
		job.PayloadJSON = json.RawMessage(payload)
	}
	if result != "" {
		var res domain.Result
		if err := json.Unmarshal([]byte(result), &res); err != nil {
			return nil, fmt.Errorf("decode result for job %s: %w", job.ID, err)
		}
		job.Result = &res
	}
	var err error
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at for job %s: %w", job.ID, err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at for job %s: %w", job.ID, err)
	}
	return &job, nil
}
