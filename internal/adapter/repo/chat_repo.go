package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyhub/internal/domain"
)

const chatColumns = `id, shop_id, external_id, buyer_name, last_message_at, created_at, updated_at`

// ChatRepositoryPG implements domain.ChatRepository.
type ChatRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepositoryPG {
	return &ChatRepositoryPG{pool: pool}
}

func (r *ChatRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1;`, id)
	c, err := scanChat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

// UpsertChat inserts or refreshes a chat session keyed by (shop, external id).
// last_message_at only moves forward.
func (r *ChatRepositoryPG) UpsertChat(ctx context.Context, c *domain.Chat) (*domain.Chat, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO chats (id, shop_id, external_id, buyer_name, last_message_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (shop_id, external_id) DO UPDATE SET
    buyer_name      = CASE WHEN EXCLUDED.buyer_name <> '' THEN EXCLUDED.buyer_name ELSE chats.buyer_name END,
    last_message_at = GREATEST(chats.last_message_at, EXCLUDED.last_message_at),
    updated_at      = now()
RETURNING `+chatColumns+`;
`, c.ID, c.ShopID, c.ExternalID, c.BuyerName, c.LastMessageAt)
	stored, err := scanChat(row)
	if err != nil {
		return nil, fmt.Errorf("upsert chat: %w", err)
	}
	return stored, nil
}

func (r *ChatRepositoryPG) AddMessage(ctx context.Context, m *domain.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
INSERT INTO chat_messages (id, chat_id, shop_id, external_id, sender, text, event_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at;
`, m.ID, m.ChatID, m.ShopID, m.ExternalID, m.Sender, m.Text, m.EventAt).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("add chat message: %w", err)
	}
	return nil
}

// RecentMessages returns the newest limit messages, reordered oldest first so
// they can feed a conversation prompt directly.
func (r *ChatRepositoryPG) RecentMessages(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, chat_id, shop_id, external_id, sender, text, event_at, created_at
FROM (
    SELECT id, chat_id, shop_id, external_id, sender, text, event_at, created_at
    FROM chat_messages
    WHERE chat_id = $1
    ORDER BY event_at DESC, id DESC
    LIMIT $2
) newest
ORDER BY event_at, id;
`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chat messages: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.ShopID, &m.ExternalID, &m.Sender, &m.Text, &m.EventAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var c domain.Chat
	var lastMessageAt pgtype.Timestamptz
	if err := row.Scan(&c.ID, &c.ShopID, &c.ExternalID, &c.BuyerName, &lastMessageAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.LastMessageAt = tsPtr(lastMessageAt)
	return &c, nil
}

var _ domain.ChatRepository = (*ChatRepositoryPG)(nil)
