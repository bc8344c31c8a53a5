package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/guildchat-server/internal/store"
)

// JoinGuild adds the user to the guild and returns the guild's channels.
func (s *Store) JoinGuild(ctx context.Context, userID int64, guildID string) ([]*store.Channel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO members (id, joined_at, guild_id, user_id)
		VALUES (?, ?, ?, ?)
	`), uuid.NewString(), s.timestamp(), guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	channels, err := s.queryChannels(ctx, tx, `
		SELECT `+channelColumns+`
		FROM channels c
		WHERE c.guild_id = ?
		ORDER BY c.position ASC, c.created_at ASC
	`, guildID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit join: %w", err)
	}
	return channels, nil
}

// LeaveGuild removes the membership.
func (s *Store) LeaveGuild(ctx context.Context, userID int64, guildID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM members WHERE user_id = ? AND guild_id = ?`), userID, guildID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("member: %w", store.ErrNotFound)
	}
	return nil
}

// UpdateNickname sets the user's nickname in a guild.
func (s *Store) UpdateNickname(ctx context.Context, userID int64, guildID, nickName string) error {
	query := `UPDATE members SET nick_name = ? WHERE user_id = ? AND guild_id = ?`
	res, err := s.db.ExecContext(ctx, s.q(query), nickName, userID, guildID)
	if err != nil {
		return fmt.Errorf("update nickname: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("member: %w", store.ErrNotFound)
	}
	return nil
}

// IsMember checks if the user belongs to the guild.
func (s *Store) IsMember(ctx context.Context, userID int64, guildID string) (bool, error) {
	query := `SELECT COUNT(*) FROM members WHERE user_id = ? AND guild_id = ?`

	var count int
	if err := s.db.QueryRowContext(ctx, s.q(query), userID, guildID).Scan(&count); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

// ListMembers lists up to limit members of a guild with their profiles.
func (s *Store) ListMembers(ctx context.Context, guildID string, limit int) ([]*store.MemberWithUser, error) {
	query := `
		SELECT m.id, m.nick_name, m.joined_at, m.guild_id, m.user_id, ` + userColumns + `
		FROM members m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.guild_id = ?
		ORDER BY m.joined_at ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, s.q(query), guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := make([]*store.MemberWithUser, 0)
	for rows.Next() {
		var m store.MemberWithUser
		err := rows.Scan(
			&m.ID,
			&m.NickName,
			&m.JoinedAt,
			&m.GuildID,
			&m.UserID,
			&m.User.ID,
			&m.User.Username,
			&m.User.Email,
			&m.User.Profile,
			&m.User.Description,
			&m.User.CreatedAt,
			&m.User.IsOnline,
			&m.User.IsStaff,
			&m.User.IsSuperuser,
			&m.User.Code,
		)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}
