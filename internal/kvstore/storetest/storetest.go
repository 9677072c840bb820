// Package storetest holds the behavior every kvstore backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
)

// Pair opens two execution contexts on one fresh backend.
type Pair func(t *testing.T) (a, b kvstore.Store)

// WaitTimeout bounds every wait for a change notification.
var WaitTimeout = 5 * time.Second

// Next receives the next change on ch or fails the test.
func Next(t *testing.T, ch <-chan kvstore.Change) kvstore.Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return c
	case <-time.After(WaitTimeout):
		t.Fatal("timed out waiting for change")
		return kvstore.Change{}
	}
}

// NextFor skips changes until one for key arrives.
func NextFor(t *testing.T, ch <-chan kvstore.Change, key string) kvstore.Change {
	t.Helper()
	deadline := time.After(WaitTimeout)
	for {
		select {
		case c, ok := <-ch:
			require.True(t, ok, "watch channel closed")
			if c.Key == key || c.Cleared {
				return c
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change on %s", key)
			return kvstore.Change{}
		}
	}
}

// Quiet asserts nothing arrives on ch for d.
func Quiet(t *testing.T, ch <-chan kvstore.Change, d time.Duration) {
	t.Helper()
	select {
	case c, ok := <-ch:
		if ok {
			t.Fatalf("unexpected change: %s", c)
		}
	case <-time.After(d):
	}
}

// RunBasic checks the read/write contract.
func RunBasic(t *testing.T, open Pair) {
	t.Run("GetMissing", func(t *testing.T) {
		a, _ := open(t)
		_, err := a.Get("users")
		assert.True(t, errors.Is(err, kvstore.ErrNotFound), "got %v", err)
	})

	t.Run("SetGet", func(t *testing.T) {
		a, b := open(t)
		require.NoError(t, a.Set("users", []byte(`[{"id":1}]`)))

		got, err := a.Get("users")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":1}]`, string(got))

		// The other context reads the same shared data.
		got, err = b.Get("users")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":1}]`, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		a, b := open(t)
		require.NoError(t, a.Set("users", []byte(`[]`)))
		require.NoError(t, b.Set("users", []byte(`{not json`)))

		got, err := a.Get("users")
		require.NoError(t, err)
		assert.Equal(t, `{not json`, string(got))
	})

	t.Run("Delete", func(t *testing.T) {
		a, _ := open(t)
		require.NoError(t, a.Set("videos", []byte(`[]`)))
		require.NoError(t, a.Delete("videos"))
		require.NoError(t, a.Delete("videos"))

		_, err := a.Get("videos")
		assert.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("KeysSorted", func(t *testing.T) {
		a, _ := open(t)
		for _, k := range []string{"videos", "appointments", "users"} {
			require.NoError(t, a.Set(k, []byte(`[]`)))
		}
		keys, err := a.Keys()
		require.NoError(t, err)
		assert.Equal(t, []string{"appointments", "users", "videos"}, keys)
	})

	t.Run("Clear", func(t *testing.T) {
		a, _ := open(t)
		require.NoError(t, a.Set("users", []byte(`[]`)))
		require.NoError(t, a.Set("videos", []byte(`[]`)))
		require.NoError(t, a.Clear())

		keys, err := a.Keys()
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("KeyWithSeparators", func(t *testing.T) {
		a, _ := open(t)
		key := "seyda/appointments:2024 ?draft"
		require.NoError(t, a.Set(key, []byte(`[]`)))

		got, err := a.Get(key)
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))

		keys, err := a.Keys()
		require.NoError(t, err)
		assert.Equal(t, []string{key}, keys)
	})

	t.Run("EmptyKeyRejected", func(t *testing.T) {
		a, _ := open(t)
		assert.ErrorIs(t, a.Set("", []byte(`[]`)), kvstore.ErrInvalidKey)
	})

	t.Run("ClosedStore", func(t *testing.T) {
		a, _ := open(t)
		require.NoError(t, a.Close())
		_, err := a.Get("users")
		assert.ErrorIs(t, err, kvstore.ErrClosed)
		assert.ErrorIs(t, a.Set("users", []byte(`[]`)), kvstore.ErrClosed)
	})

	t.Run("DistinctOrigins", func(t *testing.T) {
		a, b := open(t)
		assert.NotEmpty(t, a.Origin())
		assert.NotEqual(t, a.Origin(), b.Origin())
	})
}

// RunWatch checks cross-context change notification.
func RunWatch(t *testing.T, open Pair) {
	t.Run("OtherContextSees", func(t *testing.T) {
		a, b := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := b.Watch(ctx)
		require.NoError(t, err)

		require.NoError(t, a.Set("users", []byte(`42`)))
		c := NextFor(t, ch, "users")
		assert.False(t, c.Removed)
		assert.Equal(t, `42`, string(c.Value))
	})

	t.Run("OwnWritesSilent", func(t *testing.T) {
		a, _ := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := a.Watch(ctx)
		require.NoError(t, err)

		require.NoError(t, a.Set("users", []byte(`[]`)))
		Quiet(t, ch, 300*time.Millisecond)
	})

	t.Run("RemoveSeen", func(t *testing.T) {
		a, b := open(t)
		require.NoError(t, a.Set("videos", []byte(`[]`)))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ch, err := b.Watch(ctx)
		require.NoError(t, err)

		require.NoError(t, a.Delete("videos"))
		c := NextFor(t, ch, "videos")
		assert.True(t, c.Removed || c.Cleared)
		assert.Nil(t, c.Value)
	})

	t.Run("ClosesOnCancel", func(t *testing.T) {
		_, b := open(t)
		ctx, cancel := context.WithCancel(context.Background())

		ch, err := b.Watch(ctx)
		require.NoError(t, err)
		cancel()

		deadline := time.After(WaitTimeout)
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("watch channel not closed after cancel")
			}
		}
	})
}
