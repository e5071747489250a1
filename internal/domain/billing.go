package domain

import "time"

// LedgerEntry is one immutable row in the credit journal. For a given
// account the sum of Delta over all rows equals the live balance, and
// BalanceAfter on the newest row equals that balance.
type LedgerEntry struct {
	ID           string
	AccountID    string // a shop today; the shape admits other billable scopes
	Delta        int
	BalanceAfter int
	Reason       string
	Meta         map[string]any
	CreatedAt    time.Time
}

// Refund reason tags carry this prefix so compensating entries are auditable.
const RefundReasonPrefix = "refund_"

// SystemFlags is the single-row table of global operational switches.
type SystemFlags struct {
	KillSwitch bool
	UpdatedAt  time.Time
}

// AIUsage records token consumption of one AI provider call for accounting.
type AIUsage struct {
	ID               string
	ShopID           string
	Model            string
	Operation        string // review_draft, question_draft, chat_draft
	PromptTokens     int
	CompletionTokens int
	ResponseID       string
	CreatedAt        time.Time
}
