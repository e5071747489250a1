package domain

import "time"

// Chat is one buyer chat session.
type Chat struct {
	ID            string
	ShopID        string
	ExternalID    string
	BuyerName     string
	LastMessageAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ChatSender tells which side produced a chat message.
type ChatSender string

const (
	ChatSenderBuyer  ChatSender = "buyer"
	ChatSenderSeller ChatSender = "seller"
)

// ChatMessage is one event inside a chat session.
type ChatMessage struct {
	ID         string
	ChatID     string
	ShopID     string
	ExternalID string
	Sender     ChatSender
	Text       string
	EventAt    time.Time
	CreatedAt  time.Time
}

// ProductCard is catalog data attached to reviews for context.
type ProductCard struct {
	ID         string
	ShopID     string
	ExternalID string // marketplace nomenclature id
	Name       string
	Brand      string
	PhotoURL   string
	UpdatedAt  time.Time
	CreatedAt  time.Time
}
