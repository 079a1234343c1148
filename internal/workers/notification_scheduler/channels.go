package notification_scheduler

import (
	"context"

	"github.com/tm-signals/signals_service/internal/domain/entities"
)

// MessageSender posts plain text to a chat
type MessageSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// DigestMailer emails a digest to one address
type DigestMailer interface {
	SendDigest(ctx context.Context, to string, digest entities.Digest) error
}

// ChatChannel delivers digests to the subscriber's chat
type ChatChannel struct {
	sender MessageSender
}

func NewChatChannel(sender MessageSender) *ChatChannel {
	return &ChatChannel{sender: sender}
}

func (c *ChatChannel) Name() string { return "chat" }

func (c *ChatChannel) Accepts(sub entities.Subscription) bool { return sub.ChatID != 0 }

func (c *ChatChannel) Deliver(ctx context.Context, sub entities.Subscription, digest entities.Digest) error {
	return c.sender.SendText(ctx, sub.ChatID, digest.Text)
}

// EmailChannel delivers digests to subscribers that registered an address
type EmailChannel struct {
	mailer DigestMailer
}

func NewEmailChannel(mailer DigestMailer) *EmailChannel {
	return &EmailChannel{mailer: mailer}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Accepts(sub entities.Subscription) bool { return sub.Email != "" }

func (c *EmailChannel) Deliver(ctx context.Context, sub entities.Subscription, digest entities.Digest) error {
	return c.mailer.SendDigest(ctx, sub.Email, digest)
}
