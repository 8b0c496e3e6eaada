// Package store provides SQLite persistence of simulation runs and their
// yearly history.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/biosim/telemetry"
)

// DB wraps a SQLite connection holding runs and their records.
type DB struct {
	conn *sqlx.DB
}

// Run describes one stored simulation run.
type Run struct {
	ID        string `db:"id"`
	Seed      int64  `db:"seed"`
	StartedAt string `db:"started_at"` // RFC 3339, UTC
	Config    string `db:"config"`     // Effective configuration as YAML
}

// recordRow binds a history record to its run.
type recordRow struct {
	RunID string `db:"run_id"`
	telemetry.YearStats
}

// recordColumns lists the record columns in the order of telemetry.YearStats.
var recordColumns = []string{
	"seed", "year",
	"herbivores", "carnivores", "total",
	"herb_births", "carn_births", "herb_deaths", "carn_deaths", "kills",
	"herb_migrations", "carn_migrations", "herb_introduced", "carn_introduced",
	"fodder_eaten", "total_fodder",
	"herb_weight_mean", "herb_weight_std", "herb_weight_p50", "herb_fitness_mean",
	"carn_weight_mean", "carn_weight_std", "carn_weight_p50", "carn_fitness_mean",
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		config TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seed INTEGER NOT NULL,
		year INTEGER NOT NULL,
		herbivores INTEGER NOT NULL,
		carnivores INTEGER NOT NULL,
		total INTEGER NOT NULL,
		herb_births INTEGER NOT NULL,
		carn_births INTEGER NOT NULL,
		herb_deaths INTEGER NOT NULL,
		carn_deaths INTEGER NOT NULL,
		kills INTEGER NOT NULL,
		herb_migrations INTEGER NOT NULL,
		carn_migrations INTEGER NOT NULL,
		herb_introduced INTEGER NOT NULL DEFAULT 0,
		carn_introduced INTEGER NOT NULL DEFAULT 0,
		fodder_eaten REAL NOT NULL,
		total_fodder REAL NOT NULL,
		herb_weight_mean REAL NOT NULL,
		herb_weight_std REAL NOT NULL,
		herb_weight_p50 REAL NOT NULL,
		herb_fitness_mean REAL NOT NULL,
		carn_weight_mean REAL NOT NULL,
		carn_weight_std REAL NOT NULL,
		carn_weight_p50 REAL NOT NULL,
		carn_fitness_mean REAL NOT NULL,
		PRIMARY KEY (run_id, year)
	);

	CREATE TABLE IF NOT EXISTS bookmarks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		year INTEGER NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookmarks_run ON bookmarks(run_id, year);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun registers a new run and returns its ID.
func (db *DB) CreateRun(seed int64, configYAML []byte) (string, error) {
	run := Run{
		ID:        uuid.NewString(),
		Seed:      seed,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Config:    string(configYAML),
	}
	_, err := db.conn.NamedExec(
		`INSERT INTO runs (id, seed, started_at, config) VALUES (:id, :seed, :started_at, :config)`, run)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

// AppendRecords stores yearly records for a run in one transaction.
func (db *DB) AppendRecords(runID string, records []telemetry.YearStats) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(fmt.Sprintf(
		`INSERT INTO records (run_id, %s) VALUES (:run_id, :%s)`,
		strings.Join(recordColumns, ", "), strings.Join(recordColumns, ", :")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(recordRow{RunID: runID, YearStats: r}); err != nil {
			return fmt.Errorf("insert year %d: %w", r.Year, err)
		}
	}
	return tx.Commit()
}

// Records returns the stored history of a run ordered by year.
func (db *DB) Records(runID string) ([]telemetry.YearStats, error) {
	var records []telemetry.YearStats
	err := db.conn.Select(&records,
		fmt.Sprintf(`SELECT %s FROM records WHERE run_id = ? ORDER BY year`, strings.Join(recordColumns, ", ")),
		runID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return records, nil
}

// SaveBookmarks stores bookmarks for a run.
func (db *DB) SaveBookmarks(runID string, bookmarks []telemetry.Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO bookmarks (run_id, year, type, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bookmarks {
		if _, err := stmt.Exec(runID, b.Year, string(b.Type), b.Description); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Bookmarks returns the stored bookmarks of a run ordered by year.
func (db *DB) Bookmarks(runID string) ([]telemetry.Bookmark, error) {
	var bookmarks []telemetry.Bookmark
	err := db.conn.Select(&bookmarks,
		`SELECT year, type, description FROM bookmarks WHERE run_id = ? ORDER BY year, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load bookmarks: %w", err)
	}
	return bookmarks, nil
}

// Runs lists every stored run, oldest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	if err := db.conn.Select(&runs, `SELECT id, seed, started_at, config FROM runs ORDER BY started_at, id`); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
