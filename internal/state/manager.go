package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Ning0612/NuUpdater/internal/domain"
)

// DBName is the history database file inside the state directory
const DBName = "nuupdater.db"

// Manager handles cycle history persistence. Only outcome metadata is
// stored, never TLE payloads.
type Manager struct {
	db *sql.DB
}

// CycleRecord represents a single finished fetch cycle
type CycleRecord struct {
	ID          int64
	CycleID     string
	Trigger     string
	StartTime   time.Time
	EndTime     time.Time
	Status      string // "success", "failed", "partial"
	Successes   int
	Total       int
	RateLimited bool
	Written     bool
	OutputPath  string
	Digest      string
	Error       string

	// Satellites is only filled by GetCycle
	Satellites []SatelliteRecord
}

// SatelliteRecord is the outcome of one satellite within a cycle
type SatelliteRecord struct {
	Name       string
	Outcome    string
	StatusCode int
	Length     int
	Detail     string
	Duration   time.Duration
}

// RecordFromResult converts a finished cycle into its history record
func RecordFromResult(res domain.CycleResult) CycleRecord {
	rec := CycleRecord{
		CycleID:     res.ID,
		Trigger:     string(res.Trigger),
		StartTime:   res.StartedAt,
		EndTime:     res.FinishedAt,
		Status:      string(res.Status()),
		Successes:   res.Successes,
		Total:       len(res.Outcomes),
		RateLimited: res.RateLimitedOrTimedOut,
		Written:     res.Written,
		OutputPath:  res.OutputPath,
		Digest:      res.Digest,
	}
	switch {
	case res.WriteErr != nil:
		rec.Error = res.WriteErr.Error()
	case res.Successes == 0:
		rec.Error = "no data for any satellite"
	}

	for _, so := range res.Outcomes {
		rec.Satellites = append(rec.Satellites, SatelliteRecord{
			Name:       so.Name,
			Outcome:    string(so.Outcome.Kind),
			StatusCode: so.Outcome.StatusCode,
			Length:     so.Outcome.Length,
			Detail:     so.Outcome.Detail,
			Duration:   so.Duration,
		})
	}
	return rec
}

// NewManager opens (creating if needed) the history database in dataDir
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// The CLI and the daemon share the file
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	manager := &Manager{db: db}

	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

// initSchema creates the database schema
func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL UNIQUE,
		trigger_kind TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		successes INTEGER DEFAULT 0,
		total INTEGER DEFAULT 0,
		rate_limited BOOLEAN DEFAULT 0,
		written BOOLEAN DEFAULT 0,
		output_path TEXT,
		digest TEXT,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS satellite_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		outcome TEXT NOT NULL,
		status_code INTEGER DEFAULT 0,
		length INTEGER DEFAULT 0,
		detail TEXT,
		duration_ms INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_start_time ON cycles(start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_cycles_status ON cycles(status);
	CREATE INDEX IF NOT EXISTS idx_outcomes_cycle ON satellite_outcomes(cycle_id, position);
	`

	_, err := m.db.Exec(schema)
	return err
}

func validStatus(s string) bool {
	switch domain.CycleStatus(s) {
	case domain.CycleSuccess, domain.CyclePartial, domain.CycleFailed:
		return true
	}
	return false
}

// SaveCycle records a finished cycle and its per-satellite outcomes
func (m *Manager) SaveCycle(record CycleRecord) error {
	if !validStatus(record.Status) {
		return fmt.Errorf("invalid status: %s (must be 'success', 'failed', or 'partial')", record.Status)
	}
	if record.CycleID == "" {
		return fmt.Errorf("cycle id cannot be empty")
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cycles (cycle_id, trigger_kind, start_time, end_time, status, successes, total,
			rate_limited, written, output_path, digest, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.CycleID,
		record.Trigger,
		record.StartTime,
		record.EndTime,
		record.Status,
		record.Successes,
		record.Total,
		record.RateLimited,
		record.Written,
		record.OutputPath,
		record.Digest,
		record.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle record: %w", err)
	}

	for i, sat := range record.Satellites {
		_, err := tx.Exec(`
			INSERT INTO satellite_outcomes (cycle_id, position, name, outcome, status_code, length, detail, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, record.CycleID, i, sat.Name, sat.Outcome, sat.StatusCode, sat.Length, sat.Detail, sat.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to save outcome of %s: %w", sat.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle record: %w", err)
	}
	return nil
}

const cycleColumns = `id, cycle_id, trigger_kind, start_time, end_time, status, successes, total,
	rate_limited, written, output_path, digest, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(row scanner) (CycleRecord, error) {
	var (
		record             CycleRecord
		outputPath, digest sql.NullString
		errText            sql.NullString
	)
	err := row.Scan(
		&record.ID,
		&record.CycleID,
		&record.Trigger,
		&record.StartTime,
		&record.EndTime,
		&record.Status,
		&record.Successes,
		&record.Total,
		&record.RateLimited,
		&record.Written,
		&outputPath,
		&digest,
		&errText,
	)
	record.OutputPath = outputPath.String
	record.Digest = digest.String
	record.Error = errText.String
	return record, err
}

// GetHistory retrieves the most recent cycles, newest first
func (m *Manager) GetHistory(limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := m.db.Query(`
		SELECT `+cycleColumns+`
		FROM cycles
		ORDER BY start_time DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []CycleRecord
	for rows.Next() {
		record, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// GetCycle retrieves one cycle with its satellite outcomes. A cycle id that
// is not recorded returns nil, nil.
func (m *Manager) GetCycle(cycleID string) (*CycleRecord, error) {
	record, err := scanCycle(m.db.QueryRow(`SELECT `+cycleColumns+` FROM cycles WHERE cycle_id = ?`, cycleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle: %w", err)
	}

	rows, err := m.db.Query(`
		SELECT name, outcome, status_code, length, detail, duration_ms
		FROM satellite_outcomes
		WHERE cycle_id = ?
		ORDER BY position
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sat    SatelliteRecord
			detail sql.NullString
			ms     int64
		)
		if err := rows.Scan(&sat.Name, &sat.Outcome, &sat.StatusCode, &sat.Length, &detail, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		sat.Detail = detail.String
		sat.Duration = time.Duration(ms) * time.Millisecond
		record.Satellites = append(record.Satellites, sat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}

	return &record, nil
}

// GetLastSuccess retrieves the last cycle that wrote every selected satellite
func (m *Manager) GetLastSuccess() (*CycleRecord, error) {
	record, err := scanCycle(m.db.QueryRow(`
		SELECT ` + cycleColumns + `
		FROM cycles
		WHERE status = 'success'
		ORDER BY start_time DESC, id DESC
		LIMIT 1
	`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No successful cycle found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last success: %w", err)
	}
	return &record, nil
}

// Prune keeps the newest keep cycles and deletes the rest. keep <= 0 keeps everything.
func (m *Manager) Prune(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		DELETE FROM cycles WHERE id NOT IN (
			SELECT id FROM cycles ORDER BY start_time DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cycles: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if _, err := tx.Exec(`DELETE FROM satellite_outcomes WHERE cycle_id NOT IN (SELECT cycle_id FROM cycles)`); err != nil {
		return 0, fmt.Errorf("failed to prune outcomes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
