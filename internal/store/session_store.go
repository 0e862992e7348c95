package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ChatTurn is one message in a planning conversation, ordered by Seq
// within a session.
type ChatTurn struct {
	SessionID string    `json:"sessionId"`
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStore persists conversation history so the planner sees prior
// turns on every request.
type SessionStore interface {
	AppendTurn(ctx context.Context, sessionID, role, content string) error
	ListTurns(ctx context.Context, sessionID string) ([]ChatTurn, error)
}

// MemorySessionStore is the default in-process SessionStore.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]ChatTurn
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]ChatTurn)}
}

func (s *MemorySessionStore) AppendTurn(_ context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.sessions[sessionID]
	s.sessions[sessionID] = append(turns, ChatTurn{
		SessionID: sessionID,
		Seq:       len(turns) + 1,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *MemorySessionStore) ListTurns(_ context.Context, sessionID string) ([]ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[sessionID]
	out := make([]ChatTurn, len(turns))
	copy(out, turns)
	return out, nil
}

// AppendTurn inserts the next turn for a session. Seq assignment and
// the insert run in one transaction so concurrent appends cannot
// collide on the (session_id, seq) key.
func (d *DB) AppendTurn(ctx context.Context, sessionID, role, content string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turn: %w", err)
	}
	defer tx.Rollback()

	var nextSeq int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_turns WHERE session_id = ?", sessionID,
	).Scan(&nextSeq)
	if err != nil {
		return fmt.Errorf("next turn seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_turns (session_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, nextSeq, role, content, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append chat turn: %w", err)
	}
	return tx.Commit()
}

func (d *DB) ListTurns(ctx context.Context, sessionID string) ([]ChatTurn, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT session_id, seq, role, content, created_at
		FROM chat_turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chat turns: %w", err)
	}
	defer rows.Close()

	var turns []ChatTurn
	for rows.Next() {
		var turn ChatTurn
		var createdAt string
		if err := rows.Scan(&turn.SessionID, &turn.Seq, &turn.Role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		turn.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}
