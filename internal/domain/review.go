package domain

import (
	"strings"
	"time"
)

// Review is one buyer review pulled from the marketplace.
type Review struct {
	ID          string
	ShopID      string
	ExternalID  string // marketplace-side review id
	ProductName string
	ProductSKU  string
	Rating      int
	Text        string
	Pros        string
	Cons        string
	AnswerText  string
	CreatedDate time.Time // marketplace-side creation time, drives the watermark
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Answered reports whether the review already carries a published reply.
func (r *Review) Answered() bool { return r.AnswerText != "" }

// HitsBlacklist reports whether any configured keyword occurs in the review
// text. Blacklisted reviews stay in the manual workflow.
func (r *Review) HitsBlacklist(keywords []string) bool {
	return textHitsBlacklist(r.Text+" "+r.Pros+" "+r.Cons, keywords)
}

// Question is one buyer question pulled from the marketplace.
type Question struct {
	ID          string
	ShopID      string
	ExternalID  string
	ProductName string
	Text        string
	AnswerText  string
	CreatedDate time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (q *Question) Answered() bool { return q.AnswerText != "" }

func (q *Question) HitsBlacklist(keywords []string) bool {
	return textHitsBlacklist(q.Text, keywords)
}

func textHitsBlacklist(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" && strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
