package tasks

import (
	"context"
	"errors"
	"fmt"

	"replyhub/internal/ai"
	"replyhub/internal/domain"
	"replyhub/internal/telemetry"
)

// handleGenerateReviewDraft produces an AI reply draft for one review. The
// charge happens before the provider call; a failed call refunds it before
// the error is surfaced, so a retried job never double-bills.
func (d *Deps) handleGenerateReviewDraft(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.GenerateReviewDraftPayload](job)
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

	rv, err := d.Reviews.GetByID(ctx, p.ReviewID)
	if err != nil {
		return fmt.Errorf("load review: %w", err)
	}
	if rv.Answered() {
		d.Logger.Info().Str("review_id", rv.ID).Msg("review already answered, skipping draft")
		return nil
	}
	if _, err := d.Drafts.LatestForSubject(ctx, domain.DraftSubjectReview, rv.ID); err == nil {
		d.Logger.Info().Str("review_id", rv.ID).Msg("draft already exists, skipping")
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check existing draft: %w", err)
	}

	meta := map[string]any{"review_id": rv.ID, "job_id": job.ID}
	if err := d.charge(ctx, shop.ID, d.Cfg.CreditsPerDraft, "review_draft", meta); err != nil {
		return err
	}
	result, err := d.Drafter.ReviewReply(ctx, st, rv)
	if err != nil {
		d.refund(ctx, shop.ID, d.Cfg.CreditsPerDraft, "refund_review_draft_error", meta)
		return fmt.Errorf("generate review reply: %w", err)
	}

	draft := &domain.Draft{
		ShopID:     shop.ID,
		Subject:    domain.DraftSubjectReview,
		SubjectID:  rv.ID,
		Text:       result.Text,
		Model:      result.Model,
		ResponseID: result.ResponseID,
	}
	if err := d.Drafts.Create(ctx, draft); err != nil {
		d.refund(ctx, shop.ID, d.Cfg.CreditsPerDraft, "refund_review_draft_error", meta)
		return fmt.Errorf("store draft: %w", err)
	}
	d.recordUsage(ctx, shop.ID, "review_draft", result)

	if st.ModeForRating(rv.Rating) == domain.ReplyModeAuto && !rv.HitsBlacklist(st.BlacklistKeywords) {
		if _, err := d.Jobs.Enqueue(ctx, domain.EnqueueParams{
			Payload: domain.PublishReviewAnswerPayload{ShopID: shop.ID, ReviewID: rv.ID, DraftID: draft.ID},
		}); err != nil {
			return fmt.Errorf("enqueue publish: %w", err)
		}
		telemetry.JobsEnqueued.WithLabelValues(string(domain.JobTypePublishReviewAnswer)).Inc()
	}
	d.Logger.Info().Str("review_id", rv.ID).Str("draft_id", draft.ID).Msg("review draft created")
	return nil
}

func (d *Deps) handleGenerateQuestionDraft(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.GenerateQuestionDraftPayload](job)
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

	q, err := d.Questions.GetByID(ctx, p.QuestionID)
	if err != nil {
		return fmt.Errorf("load question: %w", err)
	}
	if q.Answered() {
		d.Logger.Info().Str("question_id", q.ID).Msg("question already answered, skipping draft")
		return nil
	}
	if _, err := d.Drafts.LatestForSubject(ctx, domain.DraftSubjectQuestion, q.ID); err == nil {
		d.Logger.Info().Str("question_id", q.ID).Msg("draft already exists, skipping")
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check existing draft: %w", err)
	}

	meta := map[string]any{"question_id": q.ID, "job_id": job.ID}
	if err := d.charge(ctx, shop.ID, d.Cfg.CreditsPerDraft, "question_draft", meta); err != nil {
		return err
	}
	result, err := d.Drafter.QuestionReply(ctx, st, q)
	if err != nil {
		d.refund(ctx, shop.ID, d.Cfg.CreditsPerDraft, "refund_question_draft_error", meta)
		return fmt.Errorf("generate question reply: %w", err)
	}

	draft := &domain.Draft{
		ShopID:     shop.ID,
		Subject:    domain.DraftSubjectQuestion,
		SubjectID:  q.ID,
		Text:       result.Text,
		Model:      result.Model,
		ResponseID: result.ResponseID,
	}
	if err := d.Drafts.Create(ctx, draft); err != nil {
		d.refund(ctx, shop.ID, d.Cfg.CreditsPerDraft, "refund_question_draft_error", meta)
		return fmt.Errorf("store draft: %w", err)
	}
	d.recordUsage(ctx, shop.ID, "question_draft", result)

	if st.QuestionsReplyMode == domain.ReplyModeAuto && !q.HitsBlacklist(st.BlacklistKeywords) {
		if _, err := d.Jobs.Enqueue(ctx, domain.EnqueueParams{
			Payload: domain.PublishQuestionAnswerPayload{ShopID: shop.ID, QuestionID: q.ID, DraftID: draft.ID},
		}); err != nil {
			return fmt.Errorf("enqueue publish: %w", err)
		}
		telemetry.JobsEnqueued.WithLabelValues(string(domain.JobTypePublishQuestionAnswer)).Inc()
	}
	d.Logger.Info().Str("question_id", q.ID).Str("draft_id", draft.ID).Msg("question draft created")
	return nil
}

// charge takes credits up front. A zero amount is free, a failed charge
// surfaces ErrInsufficientCredits so the job retries after a top-up.
func (d *Deps) charge(ctx context.Context, shopID string, amount int, reason string, meta map[string]any) error {
	if amount <= 0 {
		return nil
	}
	ok, err := d.Billing.TryCharge(ctx, shopID, amount, reason, meta)
	if err != nil {
		return fmt.Errorf("charge %s: %w", reason, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", reason, domain.ErrInsufficientCredits)
	}
	telemetry.CreditsCharged.Add(float64(amount))
	return nil
}

// refund compensates a charge whose paid-for work did not happen. Refund
// failures are logged, not returned: the caller is already propagating the
// original error and a lost refund must stay visible in the logs.
func (d *Deps) refund(ctx context.Context, shopID string, amount int, reason string, meta map[string]any) {
	if amount <= 0 {
		return
	}
	if _, err := d.Billing.ApplyCredits(ctx, shopID, amount, reason, meta); err != nil {
		d.Logger.Error().Err(err).Str("shop_id", shopID).Str("reason", reason).Msg("refund failed")
		return
	}
	telemetry.CreditsRefunded.Add(float64(amount))
}

// recordUsage writes the token accounting row. Usage is observability, not
// billing; a failed write is logged and the job still succeeds.
func (d *Deps) recordUsage(ctx context.Context, shopID, operation string, result *ai.DraftResult) {
	err := d.Usage.Record(ctx, &domain.AIUsage{
		ShopID:           shopID,
		Model:            result.Model,
		Operation:        operation,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		ResponseID:       result.ResponseID,
	})
	if err != nil {
		d.Logger.Error().Err(err).Str("shop_id", shopID).Str("operation", operation).Msg("record ai usage")
	}
}
