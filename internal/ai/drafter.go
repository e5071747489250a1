package ai

import (
	"context"
	"fmt"
	"strings"

	"replyhub/internal/domain"
)

// DraftResult is one generated reply plus the accounting data recorded with it.
type DraftResult struct {
	Text             string
	Model            string
	ResponseID       string
	PromptTokens     int
	CompletionTokens int
}

// Drafter produces reply drafts. The job handlers depend on this interface;
// tests plug in canned implementations.
type Drafter interface {
	ReviewReply(ctx context.Context, st *domain.ShopSettings, rv *domain.Review) (*DraftResult, error)
	QuestionReply(ctx context.Context, st *domain.ShopSettings, q *domain.Question) (*DraftResult, error)
	ChatReply(ctx context.Context, st *domain.ShopSettings, chat *domain.Chat, history []domain.ChatMessage) (*DraftResult, error)
}

type completer interface {
	Complete(ctx context.Context, system, user string) (*Completion, error)
}

// Service turns shop settings plus subject data into prompts and runs them
// through a chat-completions model.
type Service struct {
	client completer
}

func NewService(client completer) *Service {
	return &Service{client: client}
}

func (s *Service) ReviewReply(ctx context.Context, st *domain.ShopSettings, rv *domain.Review) (*DraftResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Buyer review of %q, rating %d of 5.\n", rv.ProductName, rv.Rating)
	if rv.Text != "" {
		fmt.Fprintf(&b, "Review: %s\n", rv.Text)
	}
	if rv.Pros != "" {
		fmt.Fprintf(&b, "Pros: %s\n", rv.Pros)
	}
	if rv.Cons != "" {
		fmt.Fprintf(&b, "Cons: %s\n", rv.Cons)
	}
	if tpl := st.Templates[templateKeyForRating(rv.Rating)]; tpl != "" {
		fmt.Fprintf(&b, "Use this reply template as a base: %s\n", tpl)
	}
	b.WriteString("Write the seller's public reply to this review.")
	return s.complete(ctx, systemPrompt(st, "reviews"), b.String())
}

func (s *Service) QuestionReply(ctx context.Context, st *domain.ShopSettings, q *domain.Question) (*DraftResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Buyer question about %q.\n", q.ProductName)
	fmt.Fprintf(&b, "Question: %s\n", q.Text)
	b.WriteString("Write the seller's public answer to this question.")
	return s.complete(ctx, systemPrompt(st, "buyer questions"), b.String())
}

func (s *Service) ChatReply(ctx context.Context, st *domain.ShopSettings, chat *domain.Chat, history []domain.ChatMessage) (*DraftResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Chat with buyer %s. Conversation so far, oldest first:\n", displayName(chat.BuyerName))
	for _, m := range history {
		role := "Buyer"
		if m.Sender == domain.ChatSenderSeller {
			role = "Seller"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Text)
	}
	b.WriteString("Write the seller's next message in this chat.")
	return s.complete(ctx, systemPrompt(st, "buyer chat"), b.String())
}

func (s *Service) complete(ctx context.Context, system, user string) (*DraftResult, error) {
	out, err := s.client.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return &DraftResult{
		Text:             out.Text,
		Model:            out.Model,
		ResponseID:       out.ResponseID,
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
	}, nil
}

func systemPrompt(st *domain.ShopSettings, surface string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a marketplace seller support agent answering %s.\n", surface)
	fmt.Fprintf(&b, "Reply in language %q with a %s tone.\n", st.Language, st.Tone)
	b.WriteString("Keep the reply short, concrete, and free of promises the seller cannot keep. Never mention being an AI.\n")
	if sig := strings.TrimSpace(st.Signature); sig != "" {
		fmt.Fprintf(&b, "End the reply with this signature: %s\n", sig)
	}
	return b.String()
}

func templateKeyForRating(rating int) string {
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}
	return fmt.Sprintf("%d", rating)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "the buyer"
	}
	return name
}

var _ Drafter = (*Service)(nil)
