package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyhub/internal/domain"
)

// ShopRepositoryPG implements domain.ShopRepository.
type ShopRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewShopRepository(pool *pgxpool.Pool) *ShopRepositoryPG {
	return &ShopRepositoryPG{pool: pool}
}

func (r *ShopRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, owner_user_id, name, api_token_enc, is_active, is_frozen, credits_balance, credits_spent, created_at
FROM shops WHERE id = $1;
`, id)
	shop, err := scanShop(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}
	return shop, nil
}

const settingsColumns = `
shop_id, auto_sync, reply_mode, auto_draft, auto_draft_limit_per_sync, rating_modes,
language, tone, signature, blacklist_keywords, templates,
questions_reply_mode, questions_auto_draft, chat_enabled, chat_auto_reply, ops_flags,
last_review_sync_at, last_review_seen_at, last_questions_sync_at, last_chat_sync_at,
chat_next_ms, last_cards_sync_at, created_at, updated_at`

func (r *ShopRepositoryPG) GetSettings(ctx context.Context, shopID string) (*domain.ShopSettings, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM shop_settings WHERE shop_id = $1;`, shopID)
	st, err := scanSettings(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shop settings: %w", err)
	}
	return st, nil
}

// ListActiveWithSettings joins shops with their settings for the scheduler:
// only active, non-frozen shops enter the rotation.
func (r *ShopRepositoryPG) ListActiveWithSettings(ctx context.Context) ([]domain.ShopWithSettings, error) {
	rows, err := r.pool.Query(ctx, `
SELECT s.id, s.owner_user_id, s.name, s.api_token_enc, s.is_active, s.is_frozen, s.credits_balance, s.credits_spent, s.created_at,
       `+settingsQualified()+`
FROM shops s
JOIN shop_settings st ON st.shop_id = s.id
WHERE s.is_active AND NOT s.is_frozen
ORDER BY s.created_at;
`)
	if err != nil {
		return nil, fmt.Errorf("list active shops: %w", err)
	}
	defer rows.Close()

	var out []domain.ShopWithSettings
	for rows.Next() {
		pair, err := scanShopWithSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop row: %w", err)
		}
		out = append(out, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shops: %w", err)
	}
	return out, nil
}

func (r *ShopRepositoryPG) TouchReviewSync(ctx context.Context, shopID string, at time.Time) error {
	return r.touch(ctx, `UPDATE shop_settings SET last_review_sync_at = $2, updated_at = now() WHERE shop_id = $1;`, shopID, at)
}

// AdvanceReviewWatermark only ever moves the cursor forward; the WHERE clause
// makes a stale call a no-op rather than a regression.
func (r *ShopRepositoryPG) AdvanceReviewWatermark(ctx context.Context, shopID string, seenAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
UPDATE shop_settings
SET last_review_seen_at = $2, updated_at = now()
WHERE shop_id = $1 AND (last_review_seen_at IS NULL OR last_review_seen_at < $2);
`, shopID, seenAt)
	if err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

func (r *ShopRepositoryPG) TouchQuestionsSync(ctx context.Context, shopID string, at time.Time) error {
	return r.touch(ctx, `UPDATE shop_settings SET last_questions_sync_at = $2, updated_at = now() WHERE shop_id = $1;`, shopID, at)
}

func (r *ShopRepositoryPG) TouchChatSync(ctx context.Context, shopID string, at time.Time, nextMS *int64) error {
	_, err := r.pool.Exec(ctx, `
UPDATE shop_settings
SET last_chat_sync_at = $2, chat_next_ms = COALESCE($3, chat_next_ms), updated_at = now()
WHERE shop_id = $1;
`, shopID, at, nextMS)
	if err != nil {
		return fmt.Errorf("touch chat sync: %w", err)
	}
	return nil
}

func (r *ShopRepositoryPG) TouchCardsSync(ctx context.Context, shopID string, at time.Time) error {
	return r.touch(ctx, `UPDATE shop_settings SET last_cards_sync_at = $2, updated_at = now() WHERE shop_id = $1;`, shopID, at)
}

func (r *ShopRepositoryPG) SetOpsFlags(ctx context.Context, shopID string, flags domain.OpsFlags) error {
	raw, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshal ops flags: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE shop_settings SET ops_flags = $2, updated_at = now() WHERE shop_id = $1;
`, shopID, raw)
	if err != nil {
		return fmt.Errorf("set ops flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ShopRepositoryPG) touch(ctx context.Context, query, shopID string, at time.Time) error {
	if _, err := r.pool.Exec(ctx, query, shopID, at); err != nil {
		return fmt.Errorf("touch sync marker: %w", err)
	}
	return nil
}

func settingsQualified() string {
	return `st.shop_id, st.auto_sync, st.reply_mode, st.auto_draft, st.auto_draft_limit_per_sync, st.rating_modes,
       st.language, st.tone, st.signature, st.blacklist_keywords, st.templates,
       st.questions_reply_mode, st.questions_auto_draft, st.chat_enabled, st.chat_auto_reply, st.ops_flags,
       st.last_review_sync_at, st.last_review_seen_at, st.last_questions_sync_at, st.last_chat_sync_at,
       st.chat_next_ms, st.last_cards_sync_at, st.created_at, st.updated_at`
}

func scanShop(row pgx.Row) (*domain.Shop, error) {
	var s domain.Shop
	if err := row.Scan(
		&s.ID, &s.OwnerUserID, &s.Name, &s.APIToken,
		&s.IsActive, &s.IsFrozen, &s.CreditsBalance, &s.CreditsSpent, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// settingsRow carries the raw column values that need post-processing after
// a settings scan (JSONB fragments and nullable markers).
type settingsRow struct {
	ratingModes, blacklist, templates, opsFlags                                    []byte
	lastReviewSync, lastReviewSeen, lastQuestionsSync, lastChatSync, lastCardsSync pgtype.Timestamptz
	chatNextMS                                                                     pgtype.Int8
}

func (x *settingsRow) dests(st *domain.ShopSettings) []any {
	return []any{
		&st.ShopID, &st.AutoSync, &st.ReplyMode, &st.AutoDraft, &st.AutoDraftLimitPerSync, &x.ratingModes,
		&st.Language, &st.Tone, &st.Signature, &x.blacklist, &x.templates,
		&st.QuestionsReplyMode, &st.QuestionsAutoDraft, &st.ChatEnabled, &st.ChatAutoReply, &x.opsFlags,
		&x.lastReviewSync, &x.lastReviewSeen, &x.lastQuestionsSync, &x.lastChatSync,
		&x.chatNextMS, &x.lastCardsSync, &st.CreatedAt, &st.UpdatedAt,
	}
}

func (x *settingsRow) apply(st *domain.ShopSettings) error {
	if err := json.Unmarshal(x.ratingModes, &st.RatingModes); err != nil {
		return fmt.Errorf("decode rating_modes: %w", err)
	}
	if err := json.Unmarshal(x.blacklist, &st.BlacklistKeywords); err != nil {
		return fmt.Errorf("decode blacklist_keywords: %w", err)
	}
	if err := json.Unmarshal(x.templates, &st.Templates); err != nil {
		return fmt.Errorf("decode templates: %w", err)
	}
	if err := json.Unmarshal(x.opsFlags, &st.Ops); err != nil {
		return fmt.Errorf("decode ops_flags: %w", err)
	}
	st.LastReviewSyncAt = tsPtr(x.lastReviewSync)
	st.LastReviewSeenAt = tsPtr(x.lastReviewSeen)
	st.LastQuestionsSyncAt = tsPtr(x.lastQuestionsSync)
	st.LastChatSyncAt = tsPtr(x.lastChatSync)
	st.LastCardsSyncAt = tsPtr(x.lastCardsSync)
	if x.chatNextMS.Valid {
		v := x.chatNextMS.Int64
		st.ChatNextMS = &v
	}
	return nil
}

func scanSettings(row pgx.Row) (*domain.ShopSettings, error) {
	var st domain.ShopSettings
	var x settingsRow
	if err := row.Scan(x.dests(&st)...); err != nil {
		return nil, err
	}
	if err := x.apply(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func scanShopWithSettings(rows pgx.Rows) (domain.ShopWithSettings, error) {
	var pair domain.ShopWithSettings
	var x settingsRow
	s := &pair.Shop
	dests := []any{
		&s.ID, &s.OwnerUserID, &s.Name, &s.APIToken,
		&s.IsActive, &s.IsFrozen, &s.CreditsBalance, &s.CreditsSpent, &s.CreatedAt,
	}
	dests = append(dests, x.dests(&pair.Settings)...)
	if err := rows.Scan(dests...); err != nil {
		return pair, err
	}
	if err := x.apply(&pair.Settings); err != nil {
		return pair, err
	}
	return pair, nil
}

func tsPtr(t pgtype.Timestamptz) *time.Time {
	if t.Valid {
		v := t.Time
		return &v
	}
	return nil
}

var _ domain.ShopRepository = (*ShopRepositoryPG)(nil)
