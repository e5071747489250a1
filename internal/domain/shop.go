package domain

import "time"

// Shop is a billing- and data-isolated seller account on the marketplace.
type Shop struct {
	ID             string
	OwnerUserID    string
	Name           string
	APIToken       string // marketplace seller token, stored encrypted
	IsActive       bool
	IsFrozen       bool
	CreditsBalance int
	CreditsSpent   int
	CreatedAt      time.Time
}

// ReplyMode controls how far automation may take a reply.
type ReplyMode string

const (
	ReplyModeManual ReplyMode = "manual"
	ReplyModeSemi   ReplyMode = "semi"
	ReplyModeAuto   ReplyMode = "auto"
)

// OpKind identifies the class of costly or irreversible operation a handler
// is about to perform, checked against the operational flags.
type OpKind string

const (
	OpGeneration OpKind = "generation"
	OpPublish    OpKind = "publish"
)

// OpsFlags is the per-shop kill-switch fragment embedded in settings.
// KillSwitch implies both sub-flags.
type OpsFlags struct {
	KillSwitch         bool `json:"kill_switch,omitempty"`
	GenerationDisabled bool `json:"generation_disabled,omitempty"`
	PublishingDisabled bool `json:"publishing_disabled,omitempty"`
}

// Blocks reports whether the fragment forbids the given operation kind.
func (f OpsFlags) Blocks(kind OpKind) bool {
	if f.KillSwitch {
		return true
	}
	switch kind {
	case OpGeneration:
		return f.GenerationDisabled
	case OpPublish:
		return f.PublishingDisabled
	}
	return false
}

// ShopSettings holds per-shop automation preferences and sync watermarks.
type ShopSettings struct {
	ShopID string

	AutoSync              bool
	ReplyMode             ReplyMode
	AutoDraft             bool
	AutoDraftLimitPerSync int

	// RatingModes maps a star rating ("1".."5") to the reply mode for
	// reviews with that rating.
	RatingModes map[string]ReplyMode

	Language  string
	Tone      string
	Signature string

	BlacklistKeywords []string
	Templates         map[string]string

	QuestionsReplyMode ReplyMode
	QuestionsAutoDraft bool

	ChatEnabled   bool
	ChatAutoReply bool

	Ops OpsFlags

	// Sync markers. LastReviewSeenAt is the watermark: the newest review
	// creation time actually observed during ingest. It only ever moves
	// forward; the scheduler subtracts a small overlap at read time.
	LastReviewSyncAt    *time.Time
	LastReviewSeenAt    *time.Time
	LastQuestionsSyncAt *time.Time
	LastChatSyncAt      *time.Time
	ChatNextMS          *int64
	LastCardsSyncAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModeForRating resolves the effective reply mode for a review rating,
// falling back to the shop-wide mode when no per-rating override exists.
func (s *ShopSettings) ModeForRating(rating int) ReplyMode {
	if s.RatingModes != nil {
		if m, ok := s.RatingModes[ratingKey(rating)]; ok && m != "" {
			return m
		}
	}
	return s.ReplyMode
}

func ratingKey(rating int) string {
	switch rating {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	case 4:
		return "4"
	case 5:
		return "5"
	}
	return ""
}

// ShopWithSettings pairs a shop with its settings for scheduler iteration.
type ShopWithSettings struct {
	Shop     Shop
	Settings ShopSettings
}
