package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/guildchat-server/internal/store"
)

const guildColumns = `g.id, g.name, g.description, g.icon, g.created_at, g.creator_id`

func scanGuild(row scanner, g *store.Guild) error {
	return row.Scan(&g.ID, &g.Name, &g.Description, &g.Icon, &g.CreatedAt, &g.CreatorID)
}

// CreateGuild creates a guild and makes the creator its first member.
func (s *Store) CreateGuild(ctx context.Context, creatorID int64, name string, description, icon *string) (*store.Guild, error) {
	now := s.timestamp()
	g := &store.Guild{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Icon:        icon,
		CreatedAt:   now,
		CreatorID:   creatorID,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO guilds (id, name, description, icon, created_at, creator_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`), g.ID, g.Name, g.Description, g.Icon, g.CreatedAt, g.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("insert guild: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO members (id, joined_at, guild_id, user_id)
		VALUES (?, ?, ?, ?)
	`), uuid.NewString(), now, g.ID, creatorID)
	if err != nil {
		return nil, fmt.Errorf("insert creator member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit guild: %w", err)
	}
	return g, nil
}

// GetGuild retrieves a guild by ID.
func (s *Store) GetGuild(ctx context.Context, id string) (*store.Guild, error) {
	query := `SELECT ` + guildColumns + ` FROM guilds g WHERE g.id = ?`

	var g store.Guild
	if err := scanGuild(s.db.QueryRowContext(ctx, s.q(query), id), &g); err != nil {
		return nil, notFound("guild", err)
	}
	return &g, nil
}

// ListUserGuilds lists the guilds a user is a member of.
func (s *Store) ListUserGuilds(ctx context.Context, userID int64) ([]*store.Guild, error) {
	query := `
		SELECT ` + guildColumns + `
		FROM members m
		INNER JOIN guilds g ON g.id = m.guild_id
		WHERE m.user_id = ?
		ORDER BY m.joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, s.q(query), userID)
	if err != nil {
		return nil, fmt.Errorf("query user guilds: %w", err)
	}
	defer rows.Close()

	var guilds []*store.Guild
	for rows.Next() {
		var g store.Guild
		if err := scanGuild(rows, &g); err != nil {
			return nil, fmt.Errorf("scan guild: %w", err)
		}
		guilds = append(guilds, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guilds: %w", err)
	}
	return guilds, nil
}
