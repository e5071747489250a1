package domain

import "time"

// DraftSubject identifies what a draft replies to.
type DraftSubject string

const (
	DraftSubjectReview   DraftSubject = "review"
	DraftSubjectQuestion DraftSubject = "question"
	DraftSubjectChat     DraftSubject = "chat"
)

// DraftStatus enumerates the draft workflow states.
type DraftStatus string

const (
	DraftStatusDrafted   DraftStatus = "drafted"
	DraftStatusPublished DraftStatus = "published"
	DraftStatusSent      DraftStatus = "sent"
)

// Draft is an AI-generated reply awaiting (or past) publication.
type Draft struct {
	ID          string
	ShopID      string
	Subject     DraftSubject
	SubjectID   string // review, question, or chat id
	Text        string
	Status      DraftStatus
	Model       string
	ResponseID  string // AI provider response id, for audit
	PublishedAt *time.Time
	CreatedAt   time.Time
}
