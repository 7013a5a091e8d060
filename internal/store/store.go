// Package store provides SQLite archiving of indicator records for the
// CLI. The engine itself never touches disk; archiving is a caller-side
// concern and losing the archive loses nothing but display history.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hiddenpointz/Next-Move/internal/engine"
)

// Store handles SQLite persistence. Concrete type, not an interface.
// All methods are safe for concurrent use via the internal mutex.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// ArchivedRecord is one stored turn, flattened for display.
type ArchivedRecord struct {
	SessionID     string
	Turn          int
	CreatedAt     time.Time
	Coherence     float64
	Instability   float64
	AgencySign    string
	Tier          string
	Summary       string
	Prescriptions []string
}

// Open creates a Store at the given database path, creating the schema if
// needed. WAL mode is enabled for file-based databases.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		session_id TEXT NOT NULL,
		turn INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		coherence REAL NOT NULL,
		instability REAL NOT NULL,
		agency_sign TEXT NOT NULL,
		tier TEXT NOT NULL,
		summary TEXT,
		prescriptions TEXT,
		PRIMARY KEY (session_id, turn)
	);

	CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id, turn);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveRecord archives one processed turn. Replaying the same session/turn
// pair overwrites the previous row.
func (s *Store) SaveRecord(sessionID string, rec *engine.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prescriptions, err := json.Marshal(rec.Prescriptions)
	if err != nil {
		return fmt.Errorf("marshal prescriptions: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO records
		(session_id, turn, created_at, coherence, instability, agency_sign, tier, summary, prescriptions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.Turn, rec.CreatedAt, rec.Coherence, rec.Instability,
		string(rec.AgencySign), string(rec.Verdict.Tier), rec.Verdict.Summary,
		string(prescriptions))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// SessionRecords returns a session's archived records in turn order.
func (s *Store) SessionRecords(sessionID string) ([]ArchivedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT session_id, turn, created_at, coherence, instability, agency_sign, tier, summary, prescriptions
		FROM records WHERE session_id = ? ORDER BY turn`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []ArchivedRecord
	for rows.Next() {
		var rec ArchivedRecord
		var prescriptions string
		if err := rows.Scan(&rec.SessionID, &rec.Turn, &rec.CreatedAt, &rec.Coherence,
			&rec.Instability, &rec.AgencySign, &rec.Tier, &rec.Summary, &prescriptions); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if prescriptions != "" {
			if err := json.Unmarshal([]byte(prescriptions), &rec.Prescriptions); err != nil {
				return nil, fmt.Errorf("unmarshal prescriptions: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Coherences returns just the coherence sequence for a session, in turn
// order. Used for trend display when the in-process ledger is gone.
func (s *Store) Coherences(sessionID string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT coherence FROM records WHERE session_id = ? ORDER BY turn`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query coherences: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan coherence: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
