package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"replyhub/internal/domain"
	"replyhub/internal/telemetry"
)

const chatHistoryLimit = 20

// handleSyncChats refreshes the chat session list for one shop.
func (d *Deps) handleSyncChats(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.SyncChatsPayload](job)
	if err != nil {
		return err
	}
	shop, st, err := d.shopContext(ctx, p.ShopID)
	if err != nil {
		return err
	}
	if !st.ChatEnabled {
		d.Logger.Info().Str("shop_id", p.ShopID).Msg("chat disabled, skipping chat sync")
		return nil
	}

	total := 0
	offset := 0
	limit := d.Cfg.AutoSyncTake
	for {
		batch, err := d.Market.ListChats(ctx, shop.APIToken, limit, offset)
		if err != nil {
			return fmt.Errorf("list chats: %w", err)
		}
		for _, ch := range batch {
			if _, err := d.Chats.UpsertChat(ctx, &domain.Chat{
				ShopID:        p.ShopID,
				ExternalID:    ch.ID,
				BuyerName:     ch.BuyerName,
				LastMessageAt: ch.LastMessageAt,
			}); err != nil {
				return fmt.Errorf("store chat %s: %w", ch.ID, err)
			}
		}
		total += len(batch)
		offset += len(batch)
		if len(batch) < limit {
			break
		}
	}

	if err := d.Shops.TouchChatSync(ctx, p.ShopID, time.Now(), nil); err != nil {
		return fmt.Errorf("touch chat sync: %w", err)
	}
	d.Logger.Info().Str("shop_id", p.ShopID).Int("chats", total).Msg("chat sync finished")
	return nil
}

// handleSyncChatEvents consumes one page of the chat event feed from the
// persisted cursor, then re-enqueues itself while the feed reports more. The
// cursor only moves after the page is fully stored, so a crash mid-page
// re-reads it; message inserts are per-event and duplicates are tolerable.
func (d *Deps) handleSyncChatEvents(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.SyncChatEventsPayload](job)
	if err != nil {
		return err
	}
	shop, st, err := d.shopContext(ctx, p.ShopID)
	if err != nil {
		return err
	}
	if !st.ChatEnabled {
		d.Logger.Info().Str("shop_id", p.ShopID).Msg("chat disabled, skipping event sync")
		return nil
	}

	var cursor int64
	if st.ChatNextMS != nil {
		cursor = *st.ChatNextMS
	}
	page, err := d.Market.ChatEvents(ctx, shop.APIToken, cursor)
	if err != nil {
		return fmt.Errorf("fetch chat events: %w", err)
	}

	buyerActivity := make(map[string]bool) // chat id -> buyer spoke in this page
	for _, ev := range page.Events {
		chat, err := d.Chats.UpsertChat(ctx, &domain.Chat{
			ShopID:        p.ShopID,
			ExternalID:    ev.ChatExternalID,
			LastMessageAt: &ev.EventAt,
		})
		if err != nil {
			return fmt.Errorf("store chat %s: %w", ev.ChatExternalID, err)
		}
		if err := d.Chats.AddMessage(ctx, &domain.ChatMessage{
			ChatID:     chat.ID,
			ShopID:     p.ShopID,
			ExternalID: ev.ID,
			Sender:     ev.Sender,
			Text:       ev.Text,
			EventAt:    ev.EventAt,
		}); err != nil {
			return fmt.Errorf("store chat message %s: %w", ev.ID, err)
		}
		if ev.Sender == domain.ChatSenderBuyer {
			buyerActivity[chat.ID] = true
		} else {
			delete(buyerActivity, chat.ID)
		}
	}

	next := page.NextMS
	if err := d.Shops.TouchChatSync(ctx, p.ShopID, time.Now(), &next); err != nil {
		return fmt.Errorf("advance chat cursor: %w", err)
	}

	if st.ChatAutoReply {
		for chatID := range buyerActivity {
			if _, err := d.Jobs.Enqueue(ctx, domain.EnqueueParams{
				Payload: domain.GenerateChatDraftPayload{ShopID: p.ShopID, ChatID: chatID},
			}); err != nil {
				return fmt.Errorf("enqueue chat draft: %w", err)
			}
			telemetry.JobsEnqueued.WithLabelValues(string(domain.JobTypeGenerateChatDraft)).Inc()
		}
	}

	if page.More {
		if _, err := d.Jobs.Enqueue(ctx, domain.EnqueueParams{
			Payload: domain.SyncChatEventsPayload{ShopID: p.ShopID},
		}); err != nil {
			return fmt.Errorf("re-enqueue event sync: %w", err)
		}
		telemetry.JobsEnqueued.WithLabelValues(string(domain.JobTypeSyncChatEvents)).Inc()
	}
	d.Logger.Info().
		Str("shop_id", p.ShopID).
		Int("events", len(page.Events)).
		Bool("more", page.More).
		Msg("chat events consumed")
	return nil
}

// handleGenerateChatDraft drafts the seller's next message when the buyer
// spoke last. Billable and refundable like the review pipeline.
func (d *Deps) handleGenerateChatDraft(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.GenerateChatDraftPayload](job)
	if err != nil {
		return err
	}
	shop, st, err := d.shopContext(ctx, p.ShopID)
	if err != nil {
		return err
	}
	if err := d.ensureAllowed(ctx, st, domain.OpGeneration); err != nil {
		return err
	}

	chat, err := d.Chats.GetByID(ctx, p.ChatID)
	if err != nil {
		return fmt.Errorf("load chat: %w", err)
	}
	history, err := d.Chats.RecentMessages(ctx, chat.ID, chatHistoryLimit)
	if err != nil {
		return fmt.Errorf("load chat history: %w", err)
	}
	if len(history) == 0 || history[len(history)-1].Sender == domain.ChatSenderSeller {
		d.Logger.Info().Str("chat_id", chat.ID).Msg("seller spoke last, skipping chat draft")
		return nil
	}
	if latest, err := d.Drafts.LatestForSubject(ctx, domain.DraftSubjectChat, chat.ID); err == nil {
		if latest.Status == domain.DraftStatusDrafted {
			d.Logger.Info().Str("chat_id", chat.ID).Msg("unsent chat draft exists, skipping")
			return nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check existing draft: %w", err)
	}

	meta := map[string]any{"chat_id": chat.ID, "job_id": job.ID}
	if err := d.charge(ctx, shop.ID, d.Cfg.CreditsPerDraft, "chat_draft", meta); err != nil {
		return err
	}
	result, err := d.Drafter.ChatReply(ctx, st, chat, history)
	if err != nil {
		d.refund(ctx, shop.ID, d.Cfg.CreditsPerDraft, "refund_chat_draft_error", meta)
		return fmt.Errorf("generate chat reply: %w", err)
	}

	draft := &domain.Draft{
		ShopID:     shop.ID,
		Subject:    domain.DraftSubjectChat,
		SubjectID:  chat.ID,
		Text:       result.Text,
		Model:      result.Model,
		ResponseID: result.ResponseID,
	}
	if err := d.Drafts.Create(ctx, draft); err != nil {
		d.refund(ctx, shop.ID, d.Cfg.CreditsPerDraft, "refund_chat_draft_error", meta)
		return fmt.Errorf("store draft: %w", err)
	}
	d.recordUsage(ctx, shop.ID, "chat_draft", result)

	if st.ChatAutoReply {
		if _, err := d.Jobs.Enqueue(ctx, domain.EnqueueParams{
			Payload: domain.SendChatMessagePayload{ShopID: shop.ID, ChatID: chat.ID, DraftID: draft.ID},
		}); err != nil {
			return fmt.Errorf("enqueue chat send: %w", err)
		}
		telemetry.JobsEnqueued.WithLabelValues(string(domain.JobTypeSendChatMessage)).Inc()
	}
	d.Logger.Info().Str("chat_id", chat.ID).Str("draft_id", draft.ID).Msg("chat draft created")
	return nil
}

// handleSendChatMessage delivers a drafted chat message. A draft already in
// sent state is a clean skip.
func (d *Deps) handleSendChatMessage(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.SendChatMessagePayload](job)
	if err != nil {
		return err
	}
	shop, st, err := d.shopContext(ctx, p.ShopID)
	if err != nil {
		return err
	}
	if err := d.ensureAllowed(ctx, st, domain.OpPublish); err != nil {
		return err
	}

	chat, err := d.Chats.GetByID(ctx, p.ChatID)
	if err != nil {
		return fmt.Errorf("load chat: %w", err)
	}
	draft, err := d.Drafts.GetByID(ctx, p.DraftID)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if draft.Status == domain.DraftStatusSent {
		d.Logger.Info().Str("draft_id", draft.ID).Msg("chat draft already sent, skipping")
		return nil
	}

	if err := d.Market.SendChatMessage(ctx, shop.APIToken, chat.ExternalID, draft.Text); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	now := time.Now()
	if err := d.Drafts.SetStatus(ctx, draft.ID, domain.DraftStatusSent, now); err != nil {
		return fmt.Errorf("mark draft sent: %w", err)
	}
	if err := d.Chats.AddMessage(ctx, &domain.ChatMessage{
		ChatID:  chat.ID,
		ShopID:  shop.ID,
		Sender:  domain.ChatSenderSeller,
		Text:    draft.Text,
		EventAt: now,
	}); err != nil {
		return fmt.Errorf("store sent message: %w", err)
	}
	d.Logger.Info().Str("chat_id", chat.ID).Str("draft_id", draft.ID).Msg("chat message sent")
	return nil
}
