package domain

import (
	"encoding/json"
	"fmt"
)

// JobPayload is the tagged union of per-type job arguments. Payloads are
// validated when a job is enqueued so malformed work is rejected at the
// boundary instead of deep inside a handler.
type JobPayload interface {
	JobType() JobType
	Validate() error
}

// SyncReviewsPayload drives an incremental review pull for one shop.
type SyncReviewsPayload struct {
	ShopID string `json:"shop_id"`
	// IsAnswered nil means "sync both answered and unanswered".
	IsAnswered   *bool  `json:"is_answered,omitempty"`
	Take         int    `json:"take"`
	Skip         int    `json:"skip"`
	Order        string `json:"order,omitempty"`
	DateFromUnix *int64 `json:"date_from_unix,omitempty"`
	DateToUnix   *int64 `json:"date_to_unix,omitempty"`
	MaxTotal     int    `json:"max_total,omitempty"`
}

func (p SyncReviewsPayload) JobType() JobType { return JobTypeSyncReviews }

func (p SyncReviewsPayload) Validate() error {
	if p.ShopID == "" {
		return fmt.Errorf("%w: shop_id is required", ErrInvalidPayload)
	}
	if p.Take <= 0 {
		return fmt.Errorf("%w: take must be positive", ErrInvalidPayload)
	}
	if p.Skip < 0 {
		return fmt.Errorf("%w: skip must not be negative", ErrInvalidPayload)
	}
	return nil
}

// SyncQuestionsPayload drives an incremental question pull for one shop.
type SyncQuestionsPayload struct {
	ShopID       string `json:"shop_id"`
	IsAnswered   *bool  `json:"is_answered,omitempty"`
	Take         int    `json:"take"`
	Skip         int    `json:"skip"`
	Order        string `json:"order,omitempty"`
	DateFromUnix *int64 `json:"date_from_unix,omitempty"`
	DateToUnix   *int64 `json:"date_to_unix,omitempty"`
}

func (p SyncQuestionsPayload) JobType() JobType { return JobTypeSyncQuestions }

func (p SyncQuestionsPayload) Validate() error {
	if p.ShopID == "" {
		return fmt.Errorf("%w: shop_id is required", ErrInvalidPayload)
	}
	if p.Take <= 0 {
		return fmt.Errorf("%w: take must be positive", ErrInvalidPayload)
	}
	if p.Skip < 0 {
		return fmt.Errorf("%w: skip must not be negative", ErrInvalidPayload)
	}
	return nil
}

// SyncChatsPayload refreshes the chat session list for one shop.
type SyncChatsPayload struct {
	ShopID string `json:"shop_id"`
}

func (p SyncChatsPayload) JobType() JobType { return JobTypeSyncChats }

func (p SyncChatsPayload) Validate() error { return requireShopID(p.ShopID) }

// SyncChatEventsPayload pulls the next page of chat events for one shop.
type SyncChatEventsPayload struct {
	ShopID string `json:"shop_id"`
}

func (p SyncChatEventsPayload) JobType() JobType { return JobTypeSyncChatEvents }

func (p SyncChatEventsPayload) Validate() error { return requireShopID(p.ShopID) }

// SyncProductCardsPayload pulls product cards so reviews can show product data.
type SyncProductCardsPayload struct {
	ShopID string `json:"shop_id"`
	Pages  int    `json:"pages"`
	Limit  int    `json:"limit"`
}

func (p SyncProductCardsPayload) JobType() JobType { return JobTypeSyncProductCards }

func (p SyncProductCardsPayload) Validate() error {
	if err := requireShopID(p.ShopID); err != nil {
		return err
	}
	if p.Pages <= 0 || p.Limit <= 0 {
		return fmt.Errorf("%w: pages and limit must be positive", ErrInvalidPayload)
	}
	return nil
}

// GenerateReviewDraftPayload asks the AI provider for a review reply draft.
type GenerateReviewDraftPayload struct {
	ShopID   string `json:"shop_id"`
	ReviewID string `json:"review_id"`
}

func (p GenerateReviewDraftPayload) JobType() JobType { return JobTypeGenerateReviewDraft }

func (p GenerateReviewDraftPayload) Validate() error {
	return requireIDs(p.ShopID, "review_id", p.ReviewID)
}

// PublishReviewAnswerPayload posts a drafted review reply to the marketplace.
type PublishReviewAnswerPayload struct {
	ShopID   string `json:"shop_id"`
	ReviewID string `json:"review_id"`
	DraftID  string `json:"draft_id,omitempty"`
}

func (p PublishReviewAnswerPayload) JobType() JobType { return JobTypePublishReviewAnswer }

func (p PublishReviewAnswerPayload) Validate() error {
	return requireIDs(p.ShopID, "review_id", p.ReviewID)
}

// GenerateQuestionDraftPayload asks the AI provider for a question reply draft.
type GenerateQuestionDraftPayload struct {
	ShopID     string `json:"shop_id"`
	QuestionID string `json:"question_id"`
}

func (p GenerateQuestionDraftPayload) JobType() JobType { return JobTypeGenerateQuestionDraft }

func (p GenerateQuestionDraftPayload) Validate() error {
	return requireIDs(p.ShopID, "question_id", p.QuestionID)
}

// PublishQuestionAnswerPayload posts a drafted question reply to the marketplace.
type PublishQuestionAnswerPayload struct {
	ShopID     string `json:"shop_id"`
	QuestionID string `json:"question_id"`
	DraftID    string `json:"draft_id,omitempty"`
}

func (p PublishQuestionAnswerPayload) JobType() JobType { return JobTypePublishQuestionAnswer }

func (p PublishQuestionAnswerPayload) Validate() error {
	return requireIDs(p.ShopID, "question_id", p.QuestionID)
}

// GenerateChatDraftPayload asks the AI provider for a buyer-chat reply draft.
type GenerateChatDraftPayload struct {
	ShopID string `json:"shop_id"`
	ChatID string `json:"chat_id"`
}

func (p GenerateChatDraftPayload) JobType() JobType { return JobTypeGenerateChatDraft }

func (p GenerateChatDraftPayload) Validate() error {
	return requireIDs(p.ShopID, "chat_id", p.ChatID)
}

// SendChatMessagePayload delivers a drafted chat reply to the buyer.
type SendChatMessagePayload struct {
	ShopID  string `json:"shop_id"`
	ChatID  string `json:"chat_id"`
	DraftID string `json:"draft_id"`
}

func (p SendChatMessagePayload) JobType() JobType { return JobTypeSendChatMessage }

func (p SendChatMessagePayload) Validate() error {
	if err := requireIDs(p.ShopID, "chat_id", p.ChatID); err != nil {
		return err
	}
	if p.DraftID == "" {
		return fmt.Errorf("%w: draft_id is required", ErrInvalidPayload)
	}
	return nil
}

// EncodePayload validates a payload and renders it for storage.
func EncodePayload(p JobPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: payload is nil", ErrInvalidPayload)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return raw, nil
}

// DecodePayload parses stored payload bytes into the typed variant for t.
func DecodePayload(t JobType, raw []byte) (JobPayload, error) {
	var p JobPayload
	switch t {
	case JobTypeSyncReviews:
		p = &SyncReviewsPayload{}
	case JobTypeSyncQuestions:
		p = &SyncQuestionsPayload{}
	case JobTypeSyncChats:
		p = &SyncChatsPayload{}
	case JobTypeSyncChatEvents:
		p = &SyncChatEventsPayload{}
	case JobTypeSyncProductCards:
		p = &SyncProductCardsPayload{}
	case JobTypeGenerateReviewDraft:
		p = &GenerateReviewDraftPayload{}
	case JobTypePublishReviewAnswer:
		p = &PublishReviewAnswerPayload{}
	case JobTypeGenerateQuestionDraft:
		p = &GenerateQuestionDraftPayload{}
	case JobTypePublishQuestionAnswer:
		p = &PublishQuestionAnswerPayload{}
	case JobTypeGenerateChatDraft:
		p = &GenerateChatDraftPayload{}
	case JobTypeSendChatMessage:
		p = &SendChatMessagePayload{}
	default:
		return nil, fmt.Errorf("unknown job type %q", t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// PayloadShopID extracts the shop scope from any payload variant, used by the
// scheduler-side dedup check and by the admin API for filtering.
func PayloadShopID(raw []byte) string {
	var probe struct {
		ShopID string `json:"shop_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ShopID
}

func requireShopID(shopID string) error {
	if shopID == "" {
		return fmt.Errorf("%w: shop_id is required", ErrInvalidPayload)
	}
	return nil
}

func requireIDs(shopID, field, value string) error {
	if err := requireShopID(shopID); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidPayload, field)
	}
	return nil
}
