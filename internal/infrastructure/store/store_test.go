package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type record struct {
	ChatID int64  `json:"chat_id"`
	Name   string `json:"name"`
}

func TestSnapshot_FileRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	snap := NewSnapshot[*record](backend, "subscriptions", zaptest.NewLogger(t))
	snap.Load(ctx)
	assert.Equal(t, 0, snap.Len())

	snap.Put("42", &record{ChatID: 1001, Name: "alice"})
	snap.Put("7", &record{ChatID: 1002, Name: "bob"})
	require.NoError(t, snap.Save(ctx))

	reloaded := NewSnapshot[*record](backend, "subscriptions", zaptest.NewLogger(t))
	reloaded.Load(ctx)

	assert.Equal(t, []string{"42", "7"}, reloaded.Keys())
	got, ok := reloaded.Get("42")
	require.True(t, ok)
	assert.Equal(t, int64(1001), got.ChatID)
	assert.Equal(t, "alice", got.Name)
}

func TestSnapshot_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "portfolios.json"), []byte("{not json"), 0o644))

	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	snap := NewSnapshot[*record](backend, "portfolios", zaptest.NewLogger(t))
	snap.Load(context.Background())

	assert.Equal(t, 0, snap.Len())
}

func TestSnapshot_FailedWriteKeepsMemory(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.WriteErr = errors.New("disk full")

	snap := NewSnapshot[*record](backend, "portfolios", zaptest.NewLogger(t))
	snap.Put("1", &record{Name: "carol"})

	err := snap.Save(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	got, ok := snap.Get("1")
	require.True(t, ok)
	assert.Equal(t, "carol", got.Name)

	backend.WriteErr = nil
	require.NoError(t, snap.Save(ctx))

	data, err := backend.Read(ctx, "portfolios")
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"chat_id":0,"name":"carol"}}`, string(data))
}

func TestSnapshot_Delete(t *testing.T) {
	snap := NewSnapshot[int](NewMemoryBackend(), "counts", zaptest.NewLogger(t))
	snap.Put("a", 1)
	snap.Put("b", 2)
	snap.Delete("a")

	_, ok := snap.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, snap.Len())
}

func TestFileBackend_ReadMissing(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Read(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrNotExist)
}
