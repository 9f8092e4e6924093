package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

var _ core.MessagesRepository = (*MessagesRepo)(nil)

type MessagesRepo struct {
	db *sql.DB
}

func NewMessagesRepo(db *sql.DB) *MessagesRepo {
	return &MessagesRepo{db: db}
}

func (r *MessagesRepo) AddMessage(ctx context.Context, conversationID string, msg core.Message) error {
	var toolCalls string
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCalls = string(data)
	}

	kind := msg.Kind
	if kind == "" {
		kind = core.KindText
	}

	query := `INSERT INTO messages (conversation_id, kind, content, reasoning, tool_calls, tool_call_id, is_error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		conversationID, string(kind), msg.Content, msg.Reasoning, toolCalls, msg.ToolCallID, msg.IsError)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetMessages returns the newest limit messages in chronological order.
// A non-positive limit returns the whole conversation.
func (r *MessagesRepo) GetMessages(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT kind, content, reasoning, tool_calls, tool_call_id, is_error
		FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var (
			msg       core.Message
			kind      string
			toolCalls string
		)
		if err := rows.Scan(&kind, &msg.Content, &msg.Reasoning, &toolCalls, &msg.ToolCallID, &msg.IsError); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Kind = core.MessageKind(kind)

		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest first from the query, callers want oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Str("conversation", conversationID).Int("count", len(messages)).Msg("loaded history messages")
	return messages, nil
}

// Clear drops the stored history of a conversation.
func (r *MessagesRepo) Clear(ctx context.Context, conversationID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}
