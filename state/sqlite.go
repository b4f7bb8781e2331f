package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/taskmesh/core"
)

// DataDirEnv names the environment variable selecting the persistence
// directory for the durable store. When unset, DefaultDBPath falls back to
// the user data directory.
const DataDirEnv = "TASKMESH_DATA_DIR"

// DefaultDBPath resolves the database location from the environment.
func DefaultDBPath() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return filepath.Join(dir, "taskmesh.db")
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "taskmesh", "taskmesh.db")
}

// SQLiteStore is a durable Store backed by SQLite. Records are stored as
// JSON blobs keyed by id, which keeps the schema stable while the free-form
// state maps evolve. WAL mode is enabled for concurrent reads.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (and if necessary creates) the database at path. An empty
// path selects DefaultDBPath.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultDBPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS agent_states (
	agent_id TEXT PRIMARY KEY,
	data     TEXT NOT NULL,
	updated  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS conversations (
	id       TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	turns    TEXT NOT NULL,
	updated  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS checkpoints (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created     TIMESTAMP NOT NULL
);`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// GetAgentState loads and decodes the agent state record.
func (s *SQLiteStore) GetAgentState(agentID string) (*core.AgentState, error) {
	var raw string
	var updated time.Time
	err := s.conn.QueryRow(`SELECT data, updated FROM agent_states WHERE agent_id = ?`, agentID).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query agent state: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode agent state: %w", err)
	}
	st := core.NewAgentState(agentID)
	st.Update(data)
	st.Updated = updated
	return st, nil
}

// SaveAgentState upserts the agent state record.
func (s *SQLiteStore) SaveAgentState(st *core.AgentState) error {
	raw, err := json.Marshal(st.Snapshot())
	if err != nil {
		return fmt.Errorf("encode agent state: %w", err)
	}
	_, err = s.conn.Exec(`INSERT INTO agent_states (agent_id, data, updated) VALUES (?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET data = excluded.data, updated = excluded.updated`,
		st.AgentID, string(raw), st.Updated)
	if err != nil {
		return fmt.Errorf("save agent state: %w", err)
	}
	return nil
}

// DeleteAgentState removes the agent state record.
func (s *SQLiteStore) DeleteAgentState(agentID string) error {
	res, err := s.conn.Exec(`DELETE FROM agent_states WHERE agent_id = ?`, agentID)
	if err != nil {
		return fmt.Errorf("delete agent state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetConversation loads and decodes the conversation record.
func (s *SQLiteStore) GetConversation(id string) (*Conversation, error) {
	var agentID, raw string
	var updated time.Time
	err := s.conn.QueryRow(`SELECT agent_id, turns, updated FROM conversations WHERE id = ?`, id).Scan(&agentID, &raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	var turns []ConversationTurn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return &Conversation{ID: id, AgentID: agentID, Turns: turns, Updated: updated}, nil
}

// SaveConversation upserts the conversation record.
func (s *SQLiteStore) SaveConversation(conv *Conversation) error {
	raw, err := json.Marshal(conv.Turns)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	_, err = s.conn.Exec(`INSERT INTO conversations (id, agent_id, turns, updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET agent_id = excluded.agent_id, turns = excluded.turns, updated = excluded.updated`,
		conv.ID, conv.AgentID, string(raw), conv.Updated)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes the conversation record.
func (s *SQLiteStore) DeleteConversation(id string) error {
	res, err := s.conn.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type checkpointPayload struct {
	TaskStatus map[string]core.TaskStatus `json:"task_status"`
	Data       map[string]any             `json:"data,omitempty"`
}

// GetCheckpoint loads and decodes the checkpoint record.
func (s *SQLiteStore) GetCheckpoint(id string) (*Checkpoint, error) {
	var workflowID, raw string
	var created time.Time
	err := s.conn.QueryRow(`SELECT workflow_id, payload, created FROM checkpoints WHERE id = ?`, id).Scan(&workflowID, &raw, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}
	var payload checkpointPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &Checkpoint{ID: id, WorkflowID: workflowID, TaskStatus: payload.TaskStatus, Data: payload.Data, Created: created}, nil
}

// SaveCheckpoint upserts the checkpoint record.
func (s *SQLiteStore) SaveCheckpoint(cp *Checkpoint) error {
	raw, err := json.Marshal(checkpointPayload{TaskStatus: cp.TaskStatus, Data: cp.Data})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	_, err = s.conn.Exec(`INSERT INTO checkpoints (id, workflow_id, payload, created) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET workflow_id = excluded.workflow_id, payload = excluded.payload, created = excluded.created`,
		cp.ID, cp.WorkflowID, string(raw), cp.Created)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// DeleteCheckpoint removes the checkpoint record.
func (s *SQLiteStore) DeleteCheckpoint(id string) error {
	res, err := s.conn.Exec(`DELETE FROM checkpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error { return s.conn.Close() }
