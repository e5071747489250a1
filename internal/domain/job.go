package domain

import "time"

// JobType enumerates the kinds of asynchronous work handled by the queue.
type JobType string

const (
	JobTypeSyncReviews      JobType = "sync_reviews"
	JobTypeSyncQuestions    JobType = "sync_questions"
	JobTypeSyncChats        JobType = "sync_chats"
	JobTypeSyncChatEvents   JobType = "sync_chat_events"
	JobTypeSyncProductCards JobType = "sync_product_cards"

	JobTypeGenerateReviewDraft   JobType = "generate_review_draft"
	JobTypePublishReviewAnswer   JobType = "publish_review_answer"
	JobTypeGenerateQuestionDraft JobType = "generate_question_draft"
	JobTypePublishQuestionAnswer JobType = "publish_question_answer"
	JobTypeGenerateChatDraft     JobType = "generate_chat_draft"
	JobTypeSendChatMessage       JobType = "send_chat_message"
)

// JobTypes lists every known job type. The worker refuses to start unless a
// handler is registered for each entry, which keeps the dispatch table closed.
var JobTypes = []JobType{
	JobTypeSyncReviews,
	JobTypeSyncQuestions,
	JobTypeSyncChats,
	JobTypeSyncChatEvents,
	JobTypeSyncProductCards,
	JobTypeGenerateReviewDraft,
	JobTypePublishReviewAnswer,
	JobTypeGenerateQuestionDraft,
	JobTypePublishQuestionAnswer,
	JobTypeGenerateChatDraft,
	JobTypeSendChatMessage,
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed || s == JobStatusCancelled
}

// DefaultMaxAttempts is applied when a caller does not specify a budget.
const DefaultMaxAttempts = 5

// MaxLastErrorLen bounds the diagnostic string persisted on a failed attempt.
const MaxLastErrorLen = 4000

// Job is one unit of asynchronous work with its own retry lifecycle.
// A job in a terminal state is never mutated again.
type Job struct {
	ID          string
	Type        JobType
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	Payload     []byte // JSON encoding of the typed payload for Type
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
