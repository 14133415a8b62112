package checkpoint

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    thread_id   TEXT NOT NULL,
    step_index  INTEGER NOT NULL,
    node_name   TEXT NOT NULL,
    state_blob  BLOB NOT NULL,
    created_at  TEXT NOT NULL,
    PRIMARY KEY (thread_id, step_index)
);
CREATE TABLE IF NOT EXISTS side_effects (
    thread_id  TEXT NOT NULL,
    effect_key TEXT NOT NULL,
    value      TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    PRIMARY KEY (thread_id, effect_key)
);
`

// SQLiteStore is the durable checkpoint backend. Checkpoints and
// side-effect keys share one database so resume state and replay
// protection survive together.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	// The driver is single-writer; serialize access at the pool level.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(cp Checkpoint) error {
	createdAt := cp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO checkpoints (thread_id, step_index, node_name, state_blob, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		cp.ThreadID, cp.StepIndex, cp.NodeName, cp.State, createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s/%d: %w", cp.ThreadID, cp.StepIndex, err)
	}
	return nil
}

func (s *SQLiteStore) Latest(threadID string) (Checkpoint, bool, error) {
	row := s.db.QueryRow(
		`SELECT thread_id, step_index, node_name, state_blob, created_at
		 FROM checkpoints WHERE thread_id = ? ORDER BY step_index DESC LIMIT 1`,
		threadID,
	)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) Get(threadID string, stepIndex int) (Checkpoint, bool, error) {
	row := s.db.QueryRow(
		`SELECT thread_id, step_index, node_name, state_blob, created_at
		 FROM checkpoints WHERE thread_id = ? AND step_index = ?`,
		threadID, stepIndex,
	)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) List(threadID string, limit int) ([]Checkpoint, error) {
	rows, err := s.db.Query(
		`SELECT thread_id, step_index, node_name, state_blob, created_at
		 FROM checkpoints WHERE thread_id = ? ORDER BY step_index DESC LIMIT ?`,
		threadID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var createdAt string
		if err := rows.Scan(&cp.ThreadID, &cp.StepIndex, &cp.NodeName, &cp.State, &createdAt); err != nil {
			return nil, err
		}
		cp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(threadID string) error {
	if _, err := s.db.Exec(`DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM side_effects WHERE thread_id = ?`, threadID)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// SeenEffect implements the executor KeyStore.
func (s *SQLiteStore) SeenEffect(threadID, key string) (bool, string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM side_effects WHERE thread_id = ? AND effect_key = ?`,
		threadID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, value, nil
}

// MarkEffect implements the executor KeyStore.
func (s *SQLiteStore) MarkEffect(threadID, key, value string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO side_effects (thread_id, effect_key, value, created_at)
		 VALUES (?, ?, ?, ?)`,
		threadID, key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func scanCheckpoint(row *sql.Row) (Checkpoint, bool, error) {
	var cp Checkpoint
	var createdAt string
	err := row.Scan(&cp.ThreadID, &cp.StepIndex, &cp.NodeName, &cp.State, &createdAt)
	if err == sql.ErrNoRows {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	cp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return cp, true, nil
}
