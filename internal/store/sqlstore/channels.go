package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/guildchat-server/internal/store"
)

const channelColumns = `c.id, c.name, c.description, c.position, c.guild_id, c.user1, c.user2,
	c.channel_type, c.created_at`

func scanChannel(row scanner, c *store.Channel) error {
	return row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.Position,
		&c.GuildID,
		&c.User1,
		&c.User2,
		&c.ChannelType,
		&c.CreatedAt,
	)
}

func (s *Store) queryChannels(ctx context.Context, q querier, query string, args ...any) ([]*store.Channel, error) {
	rows, err := q.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	channels := make([]*store.Channel, 0)
	for rows.Next() {
		var c store.Channel
		if err := scanChannel(rows, &c); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateChannel creates a channel inside a guild.
func (s *Store) CreateChannel(ctx context.Context, guildID string, p store.ChannelParams) (*store.Channel, error) {
	c := &store.Channel{
		ID:          uuid.NewString(),
		Name:        p.Name,
		Description: p.Description,
		Position:    p.Position,
		GuildID:     &guildID,
		ChannelType: p.ChannelType,
		CreatedAt:   s.timestamp(),
	}
	query := `
		INSERT INTO channels (id, name, description, position, guild_id, channel_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, s.q(query),
		c.ID, c.Name, c.Description, c.Position, guildID, int(c.ChannelType), c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return c, nil
}

// GetChannel retrieves a channel by ID.
func (s *Store) GetChannel(ctx context.Context, id string) (*store.Channel, error) {
	return s.getChannel(ctx, s.db, id)
}

func (s *Store) getChannel(ctx context.Context, q querier, id string) (*store.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels c WHERE c.id = ?`

	var c store.Channel
	if err := scanChannel(q.QueryRowContext(ctx, s.q(query), id), &c); err != nil {
		return nil, notFound("channel", err)
	}
	return &c, nil
}

// ListGuildChannels lists a guild's channels ordered by position.
func (s *Store) ListGuildChannels(ctx context.Context, guildID string) ([]*store.Channel, error) {
	return s.queryChannels(ctx, s.db, `
		SELECT `+channelColumns+`
		FROM channels c
		WHERE c.guild_id = ?
		ORDER BY c.position ASC, c.created_at ASC
	`, guildID)
}

// UpdateChannel rewrites the mutable fields of a channel.
func (s *Store) UpdateChannel(ctx context.Context, id string, p store.ChannelParams) (*store.Channel, error) {
	query := `
		UPDATE channels
		SET name = ?, description = ?, position = ?, channel_type = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, s.q(query), p.Name, p.Description, p.Position, int(p.ChannelType), id)
	if err != nil {
		return nil, fmt.Errorf("update channel: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("channel: %w", store.ErrNotFound)
	}
	return s.GetChannel(ctx, id)
}

// DeleteChannel removes a channel and returns the removed row.
func (s *Store) DeleteChannel(ctx context.Context, id string) (*store.Channel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer rollback(tx)

	c, err := s.getChannel(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM channels WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("delete channel: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit channel delete: %w", err)
	}
	return c, nil
}

// FindOrCreateDMChannel returns the DM channel between two users, creating
// it on first use. Participants are stored ordered so (a, b) and (b, a)
// resolve to the same row.
func (s *Store) FindOrCreateDMChannel(ctx context.Context, userA, userB int64) (*store.Channel, error) {
	u1, u2 := userA, userB
	if u1 > u2 {
		u1, u2 = u2, u1
	}

	c, err := s.findDMChannel(ctx, u1, u2)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	c = &store.Channel{
		ID:          uuid.NewString(),
		Name:        "dm",
		User1:       &u1,
		User2:       &u2,
		ChannelType: store.ChannelTypeDM,
		CreatedAt:   s.timestamp(),
	}
	query := `
		INSERT INTO channels (id, name, user1, user2, channel_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, insertErr := s.db.ExecContext(ctx, s.q(query), c.ID, c.Name, u1, u2, int(c.ChannelType), c.CreatedAt)
	if insertErr != nil {
		// Lost a race with a concurrent create; the row exists now.
		if existing, err := s.findDMChannel(ctx, u1, u2); err == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("insert dm channel: %w", insertErr)
	}
	return c, nil
}

func (s *Store) findDMChannel(ctx context.Context, u1, u2 int64) (*store.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels c WHERE c.user1 = ? AND c.user2 = ?`

	var c store.Channel
	if err := scanChannel(s.db.QueryRowContext(ctx, s.q(query), u1, u2), &c); err != nil {
		return nil, notFound("dm channel", err)
	}
	return &c, nil
}
