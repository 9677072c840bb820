package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/storetest"
)

func pair(t *testing.T) (kvstore.Store, kvstore.Store) {
	hub := NewHub()
	t.Cleanup(hub.Close)
	return hub.Context(), hub.Context()
}

func TestContract(t *testing.T) {
	storetest.RunBasic(t, pair)
	storetest.RunWatch(t, pair)
}

func TestClearNotifiesCleared(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	a, b := hub.Context(), hub.Context()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := b.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Clear())
	c := storetest.Next(t, ch)
	assert.True(t, c.Cleared)
	assert.Equal(t, a.Origin(), c.Origin)
}

func TestQuota(t *testing.T) {
	hub := NewHub(WithMaxValueBytes(8))
	s := hub.Context()

	require.NoError(t, s.Set("users", []byte(`[]`)))
	err := s.Set("users", []byte(`[1,2,3,4,5]`))
	assert.ErrorIs(t, err, kvstore.ErrQuotaExceeded)

	got, err := s.Get("users")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got), "rejected write must not replace the value")
}

func TestFailInjection(t *testing.T) {
	hub := NewHub()
	s := hub.Context()
	boom := errors.New("disk gone")

	hub.FailWrites(boom)
	assert.ErrorIs(t, s.Set("users", []byte(`[]`)), boom)
	assert.ErrorIs(t, s.Clear(), boom)

	hub.FailWrites(nil)
	require.NoError(t, s.Set("users", []byte(`[]`)))

	hub.FailReads(boom)
	_, err := s.Get("users")
	assert.ErrorIs(t, err, boom)
}

func TestCloseEndsWatch(t *testing.T) {
	hub := NewHub()
	s := hub.Context()

	ch, err := s.Watch(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	for range ch {
	}
	_, err = s.Watch(context.Background())
	assert.ErrorIs(t, err, kvstore.ErrClosed)
}
