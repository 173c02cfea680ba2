package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/breachscan/internal/model"
)

// FileName is the name of the database file inside the history directory.
const FileName = "history.db"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB stores finished runs in SQLite.
type HistoryDB struct {
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per check
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		addresses INTEGER NOT NULL,
		compromised INTEGER NOT NULL,
		clean INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		breaches INTEGER NOT NULL,
		exposed_accounts INTEGER NOT NULL,
		recipient TEXT,
		notified INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		run_json TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per looked-up address
	CREATE TABLE IF NOT EXISTS lookups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		email TEXT NOT NULL,
		kind TEXT NOT NULL,
		breach_count INTEGER NOT NULL,
		breach_names TEXT,
		failure TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_lookups_email ON lookups(email);
	CREATE INDEX IF NOT EXISTS idx_lookups_run ON lookups(run_id);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is the summary of a stored run.
type RunRecord struct {
	ID         int64
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    model.Summary
	Recipient  string
	Notified   bool
	Error      string
}

// LookupRecord is one stored lookup of an address.
type LookupRecord struct {
	RunID       int64
	StartedAt   time.Time
	Email       string
	Kind        string
	BreachCount int
	BreachNames []string
	Failure     string
}

// SaveRun stores run and its lookups in one transaction and returns the
// new run ID.
func (h *HistoryDB) SaveRun(ctx context.Context, run *model.Run) (id int64, err error) {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run: %w", err)
	}
	summary := model.Summarize(run.Lookups)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (source, started_at, finished_at, addresses, compromised, clean, failed,
		breaches, exposed_accounts, recipient, notified, error, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Source,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		summary.Addresses,
		summary.Compromised,
		summary.Clean,
		summary.Failed,
		summary.Breaches,
		summary.ExposedAccounts,
		run.Recipient,
		run.Notified,
		run.ErrorMessage,
		string(runJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO lookups (run_id, position, email, kind, breach_count, breach_names, failure)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare lookup insert: %w", err)
	}
	defer stmt.Close()

	for i, l := range run.Lookups {
		names := make([]string, 0, len(l.Result.Breaches))
		for _, b := range l.Result.Breaches {
			names = append(names, b.Name)
		}
		namesJSON, err := json.Marshal(names)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize breach names: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			id,
			i,
			l.Email,
			l.Result.Kind.String(),
			len(l.Result.Breaches),
			string(namesJSON),
			l.Result.FailureText(),
		); err != nil {
			return 0, fmt.Errorf("failed to insert lookup: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, source, started_at, finished_at, addresses, compromised, clean, failed,
		breaches, exposed_accounts, COALESCE(recipient, ''), notified, COALESCE(error, '')
	FROM runs
	ORDER BY id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(
			&rec.ID,
			&rec.Source,
			&started,
			&finished,
			&rec.Summary.Addresses,
			&rec.Summary.Compromised,
			&rec.Summary.Clean,
			&rec.Summary.Failed,
			&rec.Summary.Breaches,
			&rec.Summary.ExposedAccounts,
			&rec.Recipient,
			&rec.Notified,
			&rec.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartedAt = parseTimestamp(started)
		rec.FinishedAt = parseTimestamp(finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRun returns the stored run with the given ID.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*model.Run, error) {
	var runJSON string
	err := h.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &run, nil
}

// AddressHistory returns every stored lookup of email, newest first.
func (h *HistoryDB) AddressHistory(ctx context.Context, email string) ([]LookupRecord, error) {
	query := `
	SELECT l.run_id, r.started_at, l.email, l.kind, l.breach_count,
		COALESCE(l.breach_names, ''), COALESCE(l.failure, '')
	FROM lookups l
	JOIN runs r ON r.id = l.run_id
	WHERE l.email = ? COLLATE NOCASE
	ORDER BY l.run_id DESC, l.position
	`

	rows, err := h.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query address history: %w", err)
	}
	defer rows.Close()

	var records []LookupRecord
	for rows.Next() {
		var rec LookupRecord
		var started, namesJSON string
		if err := rows.Scan(
			&rec.RunID,
			&started,
			&rec.Email,
			&rec.Kind,
			&rec.BreachCount,
			&namesJSON,
			&rec.Failure,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lookup: %w", err)
		}
		rec.StartedAt = parseTimestamp(started)
		if namesJSON != "" {
			if err := json.Unmarshal([]byte(namesJSON), &rec.BreachNames); err != nil {
				rec.BreachNames = nil
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// storedTimestampFormat is the layout written by SaveRun.
const storedTimestampFormat = "2006-01-02 15:04:05.000"

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	storedTimestampFormat,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,
	time.RFC3339Nano,
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimestampFormat)
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
