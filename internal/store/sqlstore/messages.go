package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/guildchat-server/internal/store"
)

const messageColumns = `id, content, created_at, edited_at, author_id, channel_id`

func scanMessage(row scanner, m *store.Message) error {
	return row.Scan(&m.ID, &m.Content, &m.CreatedAt, &m.EditedAt, &m.AuthorID, &m.ChannelID)
}

// CreateMessage persists a new message.
func (s *Store) CreateMessage(ctx context.Context, authorID int64, channelID, content string) (*store.Message, error) {
	now := s.timestamp()
	// Version 7 ids sort in creation order, which breaks created_at ties.
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	m := &store.Message{
		ID:        id.String(),
		Content:   content,
		CreatedAt: now,
		EditedAt:  now,
		AuthorID:  authorID,
		ChannelID: channelID,
	}
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, s.q(query), m.ID, m.Content, m.CreatedAt, m.EditedAt, m.AuthorID, m.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// UpdateMessage edits a message owned by authorID.
func (s *Store) UpdateMessage(ctx context.Context, authorID int64, id, content string) (*store.Message, *store.MessageRoute, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE messages SET content = ?, edited_at = ?
		WHERE id = ? AND author_id = ?
	`), content, s.timestamp(), id, authorID)
	if err != nil {
		return nil, nil, fmt.Errorf("update message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil, fmt.Errorf("message: %w", store.ErrNotFound)
	}

	var m store.Message
	row := tx.QueryRowContext(ctx, s.q(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), id)
	if err := scanMessage(row, &m); err != nil {
		return nil, nil, notFound("message", err)
	}

	c, err := s.getChannel(ctx, tx, m.ChannelID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit message update: %w", err)
	}
	return &m, store.RouteOf(c), nil
}

// DeleteMessage removes a message owned by authorID.
func (s *Store) DeleteMessage(ctx context.Context, authorID int64, id string) (*store.MessageRoute, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer rollback(tx)

	var channelID string
	err = tx.QueryRowContext(ctx, s.q(`SELECT channel_id FROM messages WHERE id = ? AND author_id = ?`), id, authorID).
		Scan(&channelID)
	if err != nil {
		return nil, notFound("message", err)
	}

	c, err := s.getChannel(ctx, tx, channelID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM messages WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit message delete: %w", err)
	}
	return store.RouteOf(c), nil
}

// ListMessages returns up to limit messages of a channel, newest first.
func (s *Store) ListMessages(ctx context.Context, channelID string, limit int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, s.q(query), channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var m store.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
