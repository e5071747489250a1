package tasks

import (
	"context"
	"fmt"
	"time"

	"replyhub/internal/domain"
	"replyhub/internal/marketplace"
	"replyhub/internal/telemetry"
)

// handleSyncReviews pulls one incremental window of reviews, stores them,
// advances the shop watermark, then fans out draft-generation jobs for the
// eligible backlog.
func (d *Deps) handleSyncReviews(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.SyncReviewsPayload](job)
	if err != nil {
		return err
	}
	shop, st, err := d.shopContext(ctx, p.ShopID)
	if err != nil {
		return err
	}

	var newest time.Time
	total := 0
	skip := p.Skip
	for {
		batch, err := d.Market.ListReviews(ctx, shop.APIToken, marketplace.ReviewQuery{
			IsAnswered:   p.IsAnswered,
			Take:         p.Take,
			Skip:         skip,
			Order:        p.Order,
			DateFromUnix: p.DateFromUnix,
			DateToUnix:   p.DateToUnix,
		})
		if err != nil {
			return fmt.Errorf("list reviews: %w", err)
		}
		for _, rd := range batch {
			if _, err := d.Reviews.Upsert(ctx, &domain.Review{
				ShopID:      p.ShopID,
				ExternalID:  rd.ID,
				ProductName: rd.ProductName,
				ProductSKU:  rd.ProductSKU,
				Rating:      rd.Rating,
				Text:        rd.Text,
				Pros:        rd.Pros,
				Cons:        rd.Cons,
				AnswerText:  rd.AnswerText,
				CreatedDate: rd.CreatedDate,
			}); err != nil {
				return fmt.Errorf("store review %s: %w", rd.ID, err)
			}
			if rd.CreatedDate.After(newest) {
				newest = rd.CreatedDate
			}
		}
		total += len(batch)
		skip += len(batch)
		if len(batch) < p.Take {
			break
		}
		if p.MaxTotal > 0 && total >= p.MaxTotal {
			break
		}
	}

	now := time.Now()
	if err := d.Shops.TouchReviewSync(ctx, p.ShopID, now); err != nil {
		return fmt.Errorf("touch review sync: %w", err)
	}
	if !newest.IsZero() {
		if err := d.Shops.AdvanceReviewWatermark(ctx, p.ShopID, newest); err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}
	}

	drafted, err := d.enqueueReviewDrafts(ctx, shop, st)
	if err != nil {
		return err
	}
	d.Logger.Info().
		Str("shop_id", p.ShopID).
		Int("reviews", total).
		Int("drafts_enqueued", drafted).
		Msg("review sync finished")
	return nil
}

// enqueueReviewDrafts queues draft generation for unanswered reviews that
// have no draft yet. The fan-out is capped by the per-sync limit and by what
// the current balance can pay for; drafting is a paid operation and a storm
// of doomed jobs helps nobody.
func (d *Deps) enqueueReviewDrafts(ctx context.Context, shop *domain.Shop, st *domain.ShopSettings) (int, error) {
	if !st.AutoDraft || st.ReplyMode == domain.ReplyModeManual {
		return 0, nil
	}
	limit := st.AutoDraftLimitPerSync
	if limit <= 0 {
		limit = d.Cfg.AutoSyncTake
	}
	if d.Cfg.CreditsPerDraft > 0 {
		balance, err := d.Billing.GetBalance(ctx, shop.ID)
		if err != nil {
			return 0, fmt.Errorf("read balance: %w", err)
		}
		if affordable := balance / d.Cfg.CreditsPerDraft; affordable < limit {
			limit = affordable
		}
	}
	if limit <= 0 {
		return 0, nil
	}

	reviews, err := d.Reviews.ListUnansweredWithoutDrafts(ctx, shop.ID, limit)
	if err != nil {
		return 0, fmt.Errorf("list undrafted reviews: %w", err)
	}
	enqueued := 0
	for _, rv := range reviews {
		if st.ModeForRating(rv.Rating) == domain.ReplyModeManual {
			continue
		}
		if _, err := d.Jobs.Enqueue(ctx, domain.EnqueueParams{
			Payload: domain.GenerateReviewDraftPayload{ShopID: shop.ID, ReviewID: rv.ID},
		}); err != nil {
			return enqueued, fmt.Errorf("enqueue review draft: %w", err)
		}
		telemetry.JobsEnqueued.WithLabelValues(string(domain.JobTypeGenerateReviewDraft)).Inc()
		enqueued++
	}
	return enqueued, nil
}

func (d *Deps) handleSyncQuestions(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.SyncQuestionsPayload](job)
	if err != nil {
		return err
	}
	shop, st, err := d.shopContext(ctx, p.ShopID)
	if err != nil {
		return err
	}

	total := 0
	skip := p.Skip
	for {
		batch, err := d.Market.ListQuestions(ctx, shop.APIToken, marketplace.QuestionQuery{
			IsAnswered: p.IsAnswered,
			Take:       p.Take,
			Skip:       skip,
		})
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		for _, qd := range batch {
			if _, err := d.Questions.Upsert(ctx, &domain.Question{
				ShopID:      p.ShopID,
				ExternalID:  qd.ID,
				ProductName: qd.ProductName,
				Text:        qd.Text,
				AnswerText:  qd.AnswerText,
				CreatedDate: qd.CreatedDate,
			}); err != nil {
				return fmt.Errorf("store question %s: %w", qd.ID, err)
			}
		}
		total += len(batch)
		skip += len(batch)
		if len(batch) < p.Take {
			break
		}
	}

	if err := d.Shops.TouchQuestionsSync(ctx, p.ShopID, time.Now()); err != nil {
		return fmt.Errorf("touch questions sync: %w", err)
	}

	drafted := 0
	if st.QuestionsAutoDraft && st.QuestionsReplyMode != domain.ReplyModeManual {
		questions, err := d.Questions.ListUnansweredWithoutDrafts(ctx, shop.ID, d.Cfg.AutoSyncTake)
		if err != nil {
			return fmt.Errorf("list undrafted questions: %w", err)
		}
		for _, q := range questions {
			if _, err := d.Jobs.Enqueue(ctx, domain.EnqueueParams{
				Payload: domain.GenerateQuestionDraftPayload{ShopID: shop.ID, QuestionID: q.ID},
			}); err != nil {
				return fmt.Errorf("enqueue question draft: %w", err)
			}
			telemetry.JobsEnqueued.WithLabelValues(string(domain.JobTypeGenerateQuestionDraft)).Inc()
			drafted++
		}
	}
	d.Logger.Info().
		Str("shop_id", p.ShopID).
		Int("questions", total).
		Int("drafts_enqueued", drafted).
		Msg("question sync finished")
	return nil
}

// handleSyncProductCards walks a bounded number of catalog pages per run.
// The catalog changes slowly, so each run restarts from the top rather than
// persisting a cursor.
func (d *Deps) handleSyncProductCards(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.SyncProductCardsPayload](job)
	if err != nil {
		return err
	}
	shop, _, err := d.shopContext(ctx, p.ShopID)
	if err != nil {
		return err
	}

	var cursor marketplace.CardsCursor
	total := 0
	for page := 0; page < p.Pages; page++ {
		res, err := d.Market.ListProductCards(ctx, shop.APIToken, cursor, p.Limit)
		if err != nil {
			return fmt.Errorf("list product cards: %w", err)
		}
		for _, card := range res.Cards {
			if err := d.Cards.Upsert(ctx, &domain.ProductCard{
				ShopID:     p.ShopID,
				ExternalID: card.ExternalID,
				Name:       card.Name,
				Brand:      card.Brand,
				PhotoURL:   card.PhotoURL,
			}); err != nil {
				return fmt.Errorf("store product card %s: %w", card.ExternalID, err)
			}
		}
		total += len(res.Cards)
		if len(res.Cards) < p.Limit {
			break
		}
		cursor = res.Next
	}

	if err := d.Shops.TouchCardsSync(ctx, p.ShopID, time.Now()); err != nil {
		return fmt.Errorf("touch cards sync: %w", err)
	}
	d.Logger.Info().Str("shop_id", p.ShopID).Int("cards", total).Msg("card sync finished")
	return nil
}
