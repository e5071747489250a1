package tasks

import (
	"context"
	"fmt"
	"time"

	"replyhub/internal/domain"
)

// handlePublishReviewAnswer posts a drafted reply to the marketplace. It is
// idempotent: an already-answered review is a clean skip, so a retried job
// never posts the same reply twice.
func (d *Deps) handlePublishReviewAnswer(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.PublishReviewAnswerPayload](job)
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

	rv, err := d.Reviews.GetByID(ctx, p.ReviewID)
	if err != nil {
		return fmt.Errorf("load review: %w", err)
	}
	if rv.Answered() {
		d.Logger.Info().Str("review_id", rv.ID).Msg("review already answered, skipping publish")
		return nil
	}
	draft, err := d.loadDraft(ctx, p.DraftID, domain.DraftSubjectReview, rv.ID)
	if err != nil {
		return err
	}

	meta := map[string]any{"review_id": rv.ID, "draft_id": draft.ID, "job_id": job.ID}
	if err := d.charge(ctx, shop.ID, d.Cfg.CreditsPerPublish, "review_publish", meta); err != nil {
		return err
	}
	if err := d.Market.AnswerReview(ctx, shop.APIToken, rv.ExternalID, draft.Text); err != nil {
		d.refund(ctx, shop.ID, d.Cfg.CreditsPerPublish, "refund_review_publish_error", meta)
		return fmt.Errorf("post review answer: %w", err)
	}

	if err := d.Reviews.SetAnswered(ctx, rv.ID, draft.Text); err != nil {
		return fmt.Errorf("mark review answered: %w", err)
	}
	if err := d.Drafts.SetStatus(ctx, draft.ID, domain.DraftStatusPublished, time.Now()); err != nil {
		return fmt.Errorf("mark draft published: %w", err)
	}
	d.Logger.Info().Str("review_id", rv.ID).Str("draft_id", draft.ID).Msg("review answer published")
	return nil
}

func (d *Deps) handlePublishQuestionAnswer(ctx context.Context, job *domain.Job) error {
	p, err := decode[domain.PublishQuestionAnswerPayload](job)
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

	q, err := d.Questions.GetByID(ctx, p.QuestionID)
	if err != nil {
		return fmt.Errorf("load question: %w", err)
	}
	if q.Answered() {
		d.Logger.Info().Str("question_id", q.ID).Msg("question already answered, skipping publish")
		return nil
	}
	draft, err := d.loadDraft(ctx, p.DraftID, domain.DraftSubjectQuestion, q.ID)
	if err != nil {
		return err
	}

	meta := map[string]any{"question_id": q.ID, "draft_id": draft.ID, "job_id": job.ID}
	if err := d.charge(ctx, shop.ID, d.Cfg.CreditsPerPublish, "question_publish", meta); err != nil {
		return err
	}
	if err := d.Market.AnswerQuestion(ctx, shop.APIToken, q.ExternalID, draft.Text); err != nil {
		d.refund(ctx, shop.ID, d.Cfg.CreditsPerPublish, "refund_question_publish_error", meta)
		return fmt.Errorf("post question answer: %w", err)
	}

	if err := d.Questions.SetAnswered(ctx, q.ID, draft.Text); err != nil {
		return fmt.Errorf("mark question answered: %w", err)
	}
	if err := d.Drafts.SetStatus(ctx, draft.ID, domain.DraftStatusPublished, time.Now()); err != nil {
		return fmt.Errorf("mark draft published: %w", err)
	}
	d.Logger.Info().Str("question_id", q.ID).Str("draft_id", draft.ID).Msg("question answer published")
	return nil
}

// loadDraft resolves the draft to publish: the explicit payload id when
// present, otherwise the newest draft for the subject.
func (d *Deps) loadDraft(ctx context.Context, draftID string, subject domain.DraftSubject, subjectID string) (*domain.Draft, error) {
	if draftID != "" {
		draft, err := d.Drafts.GetByID(ctx, draftID)
		if err != nil {
			return nil, fmt.Errorf("load draft %s: %w", draftID, err)
		}
		return draft, nil
	}
	draft, err := d.Drafts.LatestForSubject(ctx, subject, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load latest draft for %s %s: %w", subject, subjectID, err)
	}
	return draft, nil
}
