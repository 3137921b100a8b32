// Package store persists conversations as flat, insertion-ordered message lists
// together with the latest computed thread snapshot.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/chatthread/pkg/chattree"
)

//go:embed schema.sql
var schema string

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found in conversation")
	ErrSnapshotNotFound     = errors.New("thread snapshot not found")
	ErrConversationExists   = errors.New("conversation already exists")
)

// Conversation is the metadata row of a stored conversation.
type Conversation struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	SelectedMessageID string    `json:"selected_message_id,omitempty"`
	MessageCount      int       `json:"message_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Snapshot is the latest thread computed for a conversation.
type Snapshot struct {
	ConversationID string             `json:"conversation_id"`
	Thread         []chattree.Message `json:"thread"`
	LastAnswerID   string             `json:"last_answer_id,omitempty"`
	MessageCount   int                `json:"message_count"`
	ComputedAt     time.Time          `json:"computed_at"`
}

// Store wraps a lib/pq database handle.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateConversation stores a new conversation with its initial messages. An empty
// id gets a random UUID.
func (s *Store) CreateConversation(ctx context.Context, id, name string, msgs []chattree.Message) (*Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	conv := &Conversation{ID: id, Name: name, MessageCount: len(msgs)}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (id, name)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, id, name).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", ErrConversationExists, id)
		}
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	if err := copyMessages(ctx, tx, id, 0, msgs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation: %w", err)
	}
	return conv, nil
}

// AppendMessages adds messages after the existing ones and returns the new total.
func (s *Store) AppendMessages(ctx context.Context, conversationID string, msgs []chattree.Message) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the conversation row so concurrent appends get distinct positions.
	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, conversationID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConversationNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock conversation: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversation_messages WHERE conversation_id = $1
	`, conversationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	if err := copyMessages(ctx, tx, conversationID, count, msgs); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, conversationID); err != nil {
		return 0, fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit messages: %w", err)
	}
	return count + len(msgs), nil
}

func copyMessages(ctx context.Context, tx *sql.Tx, conversationID string, offset int, msgs []chattree.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("conversation_messages",
		"conversation_id", "position", "id", "content", "is_answer",
		"parent_present", "parent_message_id", "is_opening_statement"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		parentID := sql.NullString{String: m.ParentMessageID.ID, Valid: m.ParentMessageID.ID != ""}
		if _, err := stmt.ExecContext(ctx, conversationID, offset+i, m.ID, m.Content, m.IsAnswer,
			m.ParentMessageID.Present, parentID, m.IsOpeningStatement); err != nil {
			return fmt.Errorf("failed to copy message %s: %w", m.ID, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush messages: %w", err)
	}
	return nil
}

// GetConversation returns the conversation metadata.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	var selected sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.selected_message_id, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM conversation_messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.id = $1
	`, id).Scan(&conv.ID, &conv.Name, &selected, &conv.CreatedAt, &conv.UpdatedAt, &conv.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	conv.SelectedMessageID = selected.String
	return &conv, nil
}

// ListConversations returns conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, limit, offset int) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.selected_message_id, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM conversation_messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	convs := []Conversation{}
	for rows.Next() {
		var conv Conversation
		var selected sql.NullString
		if err := rows.Scan(&conv.ID, &conv.Name, &selected, &conv.CreatedAt, &conv.UpdatedAt, &conv.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conv.SelectedMessageID = selected.String
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// ListMessages returns the flat message list in insertion order with the parent
// tri-state restored.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]chattree.Message, error) {
	if err := s.exists(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, is_answer, parent_present, parent_message_id, is_opening_statement
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY position
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs := []chattree.Message{}
	for rows.Next() {
		var m chattree.Message
		var present bool
		var parentID sql.NullString
		if err := rows.Scan(&m.ID, &m.Content, &m.IsAnswer, &present, &parentID, &m.IsOpeningStatement); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		switch {
		case !present:
			m.ParentMessageID = chattree.LegacyParent()
		case parentID.Valid:
			m.ParentMessageID = chattree.Parent(parentID.String)
		default:
			m.ParentMessageID = chattree.RootParent()
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SetSelectedMessage records the message the user navigated to. An empty id clears
// the selection so the latest branch is shown.
func (s *Store) SetSelectedMessage(ctx context.Context, conversationID, messageID string) error {
	if err := s.exists(ctx, conversationID); err != nil {
		return err
	}

	if messageID != "" {
		var found bool
		if err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM conversation_messages WHERE conversation_id = $1 AND id = $2)
		`, conversationID, messageID).Scan(&found); err != nil {
			return fmt.Errorf("failed to check message: %w", err)
		}
		if !found {
			return ErrMessageNotFound
		}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET selected_message_id = NULLIF($2, ''), updated_at = now() WHERE id = $1
	`, conversationID, messageID)
	if err != nil {
		return fmt.Errorf("failed to set selection: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation with its messages and snapshot.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// SaveSnapshot upserts the thread snapshot of a conversation.
func (s *Store) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	thread, err := json.Marshal(snap.Thread)
	if err != nil {
		return fmt.Errorf("failed to encode thread: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thread_snapshots (conversation_id, thread, last_answer_id, message_count, computed_at)
		VALUES ($1, $2::jsonb, NULLIF($3, ''), $4, $5)
		ON CONFLICT (conversation_id) DO UPDATE
		SET thread = EXCLUDED.thread,
		    last_answer_id = EXCLUDED.last_answer_id,
		    message_count = EXCLUDED.message_count,
		    computed_at = EXCLUDED.computed_at
	`, snap.ConversationID, string(thread), snap.LastAnswerID, snap.MessageCount, snap.ComputedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrConversationNotFound
		}
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot.
func (s *Store) GetSnapshot(ctx context.Context, conversationID string) (*Snapshot, error) {
	snap := Snapshot{ConversationID: conversationID}
	var thread []byte
	var lastAnswer sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT thread, last_answer_id, message_count, computed_at
		FROM thread_snapshots
		WHERE conversation_id = $1
	`, conversationID).Scan(&thread, &lastAnswer, &snap.MessageCount, &snap.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal(thread, &snap.Thread); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot thread: %w", err)
	}
	snap.LastAnswerID = lastAnswer.String
	return &snap, nil
}

func (s *Store) exists(ctx context.Context, id string) error {
	var found bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, id).Scan(&found); err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if !found {
		return ErrConversationNotFound
	}
	return nil
}
