package subscription

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"github.com/tm-signals/signals_service/pkg/logger"
	"github.com/tm-signals/signals_service/pkg/metrics"
	"github.com/tm-signals/signals_service/pkg/sanitize"
)

const snapshotName = "subscriptions"

// Repository is satisfied by store.Snapshot[*entities.Subscription]
type Repository interface {
	Get(userID string) (*entities.Subscription, bool)
	Put(userID string, sub *entities.Subscription)
	Keys() []string
	Save(ctx context.Context) error
}

// Service keeps the registry of users opted in to periodic digests. Stored
// records are replaced on change, never modified in place.
type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		logger:   log.Named("subscriptions"),
		now:      time.Now,
	}
}

// Subscribe activates digests for userID, replacing any previous record
func (s *Service) Subscribe(ctx context.Context, userID string, chatID int64, username string) (*entities.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.ValidationError("user id is required")
	}

	sub := &entities.Subscription{
		UserID:       userID,
		ChatID:       chatID,
		Username:     username,
		SubscribedAt: s.now().UTC(),
		Active:       true,
	}
	if prev, ok := s.repo.Get(userID); ok {
		sub.Email = prev.Email
	}

	s.repo.Put(userID, sub)
	s.persist(ctx)
	s.logger.CtxInfo(ctx, "User subscribed", "user_id", userID, "chat_id", chatID)
	return sub, nil
}

// Unsubscribe marks userID inactive. It reports false when the user was never subscribed.
func (s *Service) Unsubscribe(ctx context.Context, userID string) bool {
	sub, ok := s.repo.Get(userID)
	if !ok {
		return false
	}
	next := *sub
	next.Active = false
	s.repo.Put(userID, &next)
	s.persist(ctx)
	s.logger.CtxInfo(ctx, "User unsubscribed", "user_id", userID)
	return true
}

func (s *Service) IsSubscribed(userID string) bool {
	sub, ok := s.repo.Get(userID)
	return ok && sub.Active
}

// ActiveSubscribers returns active subscriptions ordered by user id
func (s *Service) ActiveSubscribers() []entities.Subscription {
	keys := s.repo.Keys()
	active := make([]entities.Subscription, 0, len(keys))
	for _, key := range keys {
		if sub, ok := s.repo.Get(key); ok && sub.Active {
			active = append(active, *sub)
		}
	}
	return active
}

// Count returns the number of active subscribers
func (s *Service) Count() int {
	return len(s.ActiveSubscribers())
}

// SetEmail opts an existing subscriber in to email digests. An empty address opts out.
func (s *Service) SetEmail(ctx context.Context, userID, email string) error {
	sub, ok := s.repo.Get(userID)
	if !ok {
		return apperrors.NotFound("subscribe first to receive digests")
	}

	email = sanitize.Email(email)
	if err := s.validate.Var(email, "omitempty,email"); err != nil {
		return apperrors.ValidationError("invalid email address")
	}

	next := *sub
	next.Email = email
	s.repo.Put(userID, &next)
	s.persist(ctx)
	return nil
}

func (s *Service) persist(ctx context.Context) {
	if err := s.repo.Save(ctx); err != nil {
		metrics.SnapshotWriteFailuresTotal.WithLabelValues(snapshotName).Inc()
		s.logger.CtxError(ctx, "Failed to persist subscriptions", "error", err)
	}
}
