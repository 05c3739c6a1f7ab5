package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/imkarma/crew/internal/errors"
)

// Store provides access to the crew database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		kind          TEXT NOT NULL DEFAULT 'plan',
		title         TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'running',
		current_node  TEXT DEFAULT '',
		state         TEXT DEFAULT '',
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL REFERENCES sessions(id),
		agent       TEXT DEFAULT '',
		event_type  TEXT NOT NULL,
		content     TEXT DEFAULT '',
		timestamp   DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relay_results (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL REFERENCES sessions(id),
		agent       TEXT NOT NULL,
		status      TEXT NOT NULL,
		output      TEXT DEFAULT '',
		error       TEXT DEFAULT '',
		timestamp   DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		source      TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		text        TEXT NOT NULL,
		embedding   BLOB NOT NULL,
		created_at  DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Migrate existing databases: add new columns if missing.
	s.addColumnIfMissing("sessions", "degraded", "TEXT DEFAULT ''")

	return nil
}

// addColumnIfMissing adds a column to a table if it doesn't exist yet.
// Used for schema migrations on existing databases.
func (s *Store) addColumnIfMissing(table, column, colDef string) {
	// Check if column exists via PRAGMA.
	rows, err := s.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue *string
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return
		}
		if name == column {
			return // Column already exists.
		}
	}

	s.db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + colDef)
}

// --- Sessions ---

// CreateSession inserts a new session with a fresh ID.
func (s *Store) CreateSession(kind SessionKind, title string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, kind, title, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, string(kind), title, string(StatusRunning), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	s.AddEvent(sess.ID, "", "created", fmt.Sprintf("%s session created: %s", kind, title))
	return sess, nil
}

// SaveSession writes the session's mutable fields back.
func (s *Store) SaveSession(sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE sessions SET title = ?, status = ?, current_node = ?, state = ?, degraded = ?, updated_at = ?
		 WHERE id = ?`,
		sess.Title, string(sess.Status), sess.CurrentNode, sess.State, sess.Degraded, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrSessionNotFound, "save %s", sess.ID)
	}
	return nil
}

// sessionColumns is the standard column list for session queries.
const sessionColumns = `id, kind, title, status, current_node, state, degraded, created_at, updated_at`

// GetSession returns a session by full ID or by an unambiguous ID prefix.
func (s *Store) GetSession(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.Wrap(errors.ErrSessionNotFound, "empty id")
	}

	sess, err := scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	matches, err := s.querySessions(`SELECT `+sessionColumns+` FROM sessions WHERE id LIKE ? ORDER BY created_at LIMIT 2`, id+"%")
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, errors.Wrapf(errors.ErrSessionNotFound, "%s", id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("session id %q is ambiguous", id)
	}
}

// ListSessions returns sessions newest first, optionally filtered by kind.
func (s *Store) ListSessions(kind SessionKind) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC`

	return s.querySessions(query, args...)
}

// querySessions is a shared helper for running session-list queries.
func (s *Store) querySessions(query string, args ...any) ([]Session, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// --- Events ---

// AddEvent records an event for a session.
func (s *Store) AddEvent(sessionID, agent, eventType, content string) {
	now := time.Now().UTC()
	s.db.Exec(
		`INSERT INTO events (session_id, agent, event_type, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		sessionID, agent, eventType, content, now,
	)
}

// GetEvents returns all events for a session.
func (s *Store) GetEvents(sessionID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, agent, event_type, content, timestamp FROM events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Agent, &e.Type, &e.Content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Relay results ---

// AddRelayResult records one agent's output for a spec run.
func (s *Store) AddRelayResult(r RelayResult) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO relay_results (session_id, agent, status, output, error, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Agent, r.Status, r.Output, r.Error, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert relay result: %w", err)
	}
	s.AddEvent(r.SessionID, r.Agent, "relay", fmt.Sprintf("Result: %s", r.Status))
	return nil
}

// ListRelayResults returns a spec run's results in arrival order.
func (s *Store) ListRelayResults(sessionID string) ([]RelayResult, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, agent, status, output, error, timestamp FROM relay_results WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list relay results: %w", err)
	}
	defer rows.Close()

	var results []RelayResult
	for rows.Next() {
		var r RelayResult
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Agent, &r.Status, &r.Output, &r.Error, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan relay result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession scans a single session row.
func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var currentNode, state, degraded sql.NullString
	err := row.Scan(
		&sess.ID, &sess.Kind, &sess.Title, &sess.Status,
		&currentNode, &state, &degraded, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.CurrentNode = currentNode.String
	sess.State = state.String
	sess.Degraded = degraded.String
	return &sess, nil
}
