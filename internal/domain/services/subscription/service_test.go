package subscription

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/internal/infrastructure/store"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"github.com/tm-signals/signals_service/pkg/logger"
	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T) (*Service, *store.Snapshot[*entities.Subscription], *store.MemoryBackend) {
	zl := zaptest.NewLogger(t)
	backend := store.NewMemoryBackend()
	repo := store.NewSnapshot[*entities.Subscription](backend, "subscriptions", zl)
	return NewService(repo, logger.NewLogger(zl)), repo, backend
}

func TestService_SubscribeLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	assert.False(t, svc.IsSubscribed("42"))
	assert.False(t, svc.Unsubscribe(ctx, "42"))

	sub, err := svc.Subscribe(ctx, "42", 4242, "alice")
	require.NoError(t, err)
	assert.True(t, sub.Active)
	assert.True(t, svc.IsSubscribed("42"))
	assert.Equal(t, 1, svc.Count())

	assert.True(t, svc.Unsubscribe(ctx, "42"))
	assert.False(t, svc.IsSubscribed("42"))
	assert.Equal(t, 0, svc.Count())

	_, err = svc.Subscribe(ctx, "42", 4242, "alice")
	require.NoError(t, err)
	assert.True(t, svc.IsSubscribed("42"))
}

func TestService_ActiveSubscribersSkipsInactive(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, _ = svc.Subscribe(ctx, "1", 10, "a")
	_, _ = svc.Subscribe(ctx, "2", 20, "b")
	_, _ = svc.Subscribe(ctx, "3", 30, "c")
	svc.Unsubscribe(ctx, "2")

	active := svc.ActiveSubscribers()
	require.Len(t, active, 2)
	assert.Equal(t, int64(10), active[0].ChatID)
	assert.Equal(t, int64(30), active[1].ChatID)
}

func TestService_SetEmail(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	err := svc.SetEmail(ctx, "7", "a@b.io")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, _ = svc.Subscribe(ctx, "7", 70, "")
	assert.ErrorIs(t, svc.SetEmail(ctx, "7", "not-an-email"), apperrors.ErrValidation)

	require.NoError(t, svc.SetEmail(ctx, "7", " Alice@Example.com "))
	sub, _ := repo.Get("7")
	assert.Equal(t, "alice@example.com", sub.Email)

	// resubscribing keeps the address
	_, _ = svc.Subscribe(ctx, "7", 71, "")
	sub, _ = repo.Get("7")
	assert.Equal(t, "alice@example.com", sub.Email)
	assert.Equal(t, int64(71), sub.ChatID)
}

func TestService_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	svc, _, backend := newService(t)
	_, err := svc.Subscribe(ctx, "9", 90, "zed")
	require.NoError(t, err)

	reloaded := store.NewSnapshot[*entities.Subscription](backend, "subscriptions", zaptest.NewLogger(t))
	reloaded.Load(ctx)
	sub, ok := reloaded.Get("9")
	require.True(t, ok)
	assert.Equal(t, "zed", sub.Username)
	assert.True(t, sub.Active)
}

func TestService_PersistFailureStillSubscribes(t *testing.T) {
	ctx := context.Background()
	svc, _, backend := newService(t)
	backend.WriteErr = assert.AnError

	_, err := svc.Subscribe(ctx, "5", 50, "")
	require.NoError(t, err)
	assert.True(t, svc.IsSubscribed("5"))
}

func TestService_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	const users = 8
	for i := 0; i < users; i++ {
		_, err := svc.Subscribe(ctx, fmt.Sprint(i), int64(i), "")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		id := fmt.Sprint(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, svc.SetEmail(ctx, id, fmt.Sprintf("user%s-%d@example.com", id, j)))
				_ = svc.ActiveSubscribers()
			}
			svc.Unsubscribe(ctx, id)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, svc.Count())
	sub, ok := repo.Get("3")
	require.True(t, ok)
	assert.Equal(t, "user3-49@example.com", sub.Email)
}
