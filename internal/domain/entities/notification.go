package entities

import (
	"time"
)

type DigestKind string

const (
	DigestTopSignals    DigestKind = "top_signals"
	DigestMarketSummary DigestKind = "market_summary"
)

// Subscription is a chat user opted in to periodic digests
type Subscription struct {
	UserID       string    `json:"user_id"`
	ChatID       int64     `json:"chat_id"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	SubscribedAt time.Time `json:"subscribed_at"`
	Active       bool      `json:"active"`
}

// Digest is a formatted notification ready for delivery on any channel
type Digest struct {
	Kind        DigestKind `json:"kind"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	GeneratedAt time.Time  `json:"generated_at"`
}
