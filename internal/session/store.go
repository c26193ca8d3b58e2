// Package session persists pipeline runs and their per-tick results in
// sqlite. Each run opens a session row; every processed tick appends an
// event row. The store is also the data source for the monitor's
// summary and chart endpoints.
package session

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kestrel-vision/followspot/internal/monitoring"
	"github.com/kestrel-vision/followspot/migrations"
)

// Session is one pipeline run.
type Session struct {
	ID           string  `json:"session_id"`
	StartedUnix  float64 `json:"started_unix"`
	EndedUnix    float64 `json:"ended_unix,omitempty"`
	Source       string  `json:"source"`
	Controller   string  `json:"controller"`
	SettingsJSON string  `json:"settings_json,omitempty"`
}

// Tick is one processed loop iteration within a session.
type Tick struct {
	SessionID   string  `json:"session_id"`
	Seq         int64   `json:"seq"`
	AtUnix      float64 `json:"at_unix"`
	Status      string  `json:"status"`
	Candidates  int     `json:"candidates"`
	LockID      string  `json:"lock_id,omitempty"`
	PosX        float64 `json:"pos_x"`
	PosY        float64 `json:"pos_y"`
	Area        float64 `json:"area"`
	VelX        float64 `json:"vel_x"`
	VelY        float64 `json:"vel_y"`
	PredX       float64 `json:"pred_x"`
	PredY       float64 `json:"pred_y"`
	Coefficient float64 `json:"coefficient"`
	DX          int     `json:"dx"`
	DY          int     `json:"dy"`
	DurationMS  float64 `json:"duration_ms"`
}

// Store handles database operations for sessions and ticks.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the sqlite database at path and applies the
// runtime pragmas. Call MigrateUp before first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return &Store{db}, nil
}

// MigrateUp runs all pending migrations up to the latest version.
// Returns nil if no migrations were needed.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Note: the migrate instance is not closed here because closing it
	// would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (s *Store) MigrateDown() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current migration version and dirty state.
// Returns 0, false, nil if no migrations have been applied yet.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// newMigrate builds a migrate instance over the embedded schema files.
func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.DB, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger on the package log hook.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// BeginSession inserts a new session row. A missing ID is minted.
func (s *Store) BeginSession(sess *Session) error {
	if sess.ID == "" {
		sess.ID = fmt.Sprintf("ses_%s", uuid.NewString())
	}
	_, err := s.Exec(
		`INSERT INTO sessions (session_id, started_unix, source, controller, settings_json)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.StartedUnix, sess.Source, sess.Controller, sess.SettingsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(id string, endedUnix float64) error {
	res, err := s.Exec(`UPDATE sessions SET ended_unix = ? WHERE session_id = ?`, endedUnix, id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no session with id %s", id)
	}
	return nil
}

// AppendTick inserts one tick event row.
func (s *Store) AppendTick(t *Tick) error {
	_, err := s.Exec(
		`INSERT INTO ticks (
			session_id, seq, at_unix, status, candidates, lock_id,
			pos_x, pos_y, area, vel_x, vel_y, pred_x, pred_y,
			coefficient, dx, dy, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.Seq, t.AtUnix, t.Status, t.Candidates, t.LockID,
		t.PosX, t.PosY, t.Area, t.VelX, t.VelY, t.PredX, t.PredY,
		t.Coefficient, t.DX, t.DY, t.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tick: %w", err)
	}
	return nil
}

// Session fetches one session by id.
func (s *Store) Session(id string) (*Session, error) {
	row := s.QueryRow(
		`SELECT session_id, started_unix, ended_unix, source, controller, settings_json
		 FROM sessions WHERE session_id = ?`, id)

	sess := &Session{}
	err := row.Scan(&sess.ID, &sess.StartedUnix, &sess.EndedUnix,
		&sess.Source, &sess.Controller, &sess.SettingsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no session with id %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return sess, nil
}

// Sessions lists sessions newest first. A limit of 0 means no limit.
func (s *Store) Sessions(limit int) ([]*Session, error) {
	query := `SELECT session_id, started_unix, ended_unix, source, controller, settings_json
		 FROM sessions ORDER BY started_unix DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.StartedUnix, &sess.EndedUnix,
			&sess.Source, &sess.Controller, &sess.SettingsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Ticks returns a session's ticks in sequence order. A limit of 0 means
// no limit.
func (s *Store) Ticks(sessionID string, limit int) ([]*Tick, error) {
	query := `SELECT session_id, seq, at_unix, status, candidates, lock_id,
			pos_x, pos_y, area, vel_x, vel_y, pred_x, pred_y,
			coefficient, dx, dy, duration_ms
		 FROM ticks WHERE session_id = ? ORDER BY seq ASC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []*Tick
	for rows.Next() {
		t := &Tick{}
		if err := rows.Scan(&t.SessionID, &t.Seq, &t.AtUnix, &t.Status, &t.Candidates, &t.LockID,
			&t.PosX, &t.PosY, &t.Area, &t.VelX, &t.VelY, &t.PredX, &t.PredY,
			&t.Coefficient, &t.DX, &t.DY, &t.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ticks, nil
}
