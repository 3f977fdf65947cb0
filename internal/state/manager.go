package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rkuchma96/rcoffee/internal/domain"
	"github.com/rkuchma96/rcoffee/internal/logger"
)

// Manager persists sync cycle history. It is purely observational: no sync
// baseline is ever stored, so a restart always re-establishes consistency
// through a fresh startup cross-copy.
type Manager struct {
	db *sql.DB
}

// CycleRecord represents a single completed or failed sync cycle
type CycleRecord struct {
	ID        int64
	Direction domain.Direction
	StartTime time.Time
	EndTime   time.Time
	Status    string // "success" or "failed"
	Error     string
}

// NewManager opens (creating if needed) the history database under dataDir
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "rcoffee.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection avoids "database is locked" under concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

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

func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		direction TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_time ON cycles(start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_cycles_status ON cycles(status);
	`

	_, err := m.db.Exec(schema)
	return err
}

// SaveCycle records one sync cycle
func (m *Manager) SaveCycle(record CycleRecord) error {
	if record.Status != "success" && record.Status != "failed" {
		return fmt.Errorf("invalid status: %s (must be 'success' or 'failed')", record.Status)
	}

	query := `
		INSERT INTO cycles (direction, start_time, end_time, status, error)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		string(record.Direction),
		record.StartTime,
		record.EndTime,
		record.Status,
		record.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle record: %w", err)
	}

	return nil
}

// RecordCycle implements coordinator.Recorder. Persistence failures are not
// allowed to disturb the sync loop.
func (m *Manager) RecordCycle(direction domain.Direction, start, end time.Time, cycleErr error) {
	record := CycleRecord{
		Direction: direction,
		StartTime: start,
		EndTime:   end,
		Status:    "success",
	}
	if cycleErr != nil {
		record.Status = "failed"
		record.Error = cycleErr.Error()
	}
	if err := m.SaveCycle(record); err != nil {
		// History is best-effort
		logger.Get().Warn("failed to record cycle", "error", err)
	}
}

// GetHistory retrieves the most recent cycle records, newest first
func (m *Manager) GetHistory(limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, direction, start_time, end_time, status, error
		FROM cycles
		ORDER BY start_time DESC
		LIMIT ?
	`

	rows, err := m.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []CycleRecord
	for rows.Next() {
		var r CycleRecord
		var direction string
		if err := rows.Scan(&r.ID, &direction, &r.StartTime, &r.EndTime, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Direction = domain.Direction(direction)
		records = append(records, r)
	}

	return records, rows.Err()
}

// Close releases the database
func (m *Manager) Close() error {
	return m.db.Close()
}
