package watchdog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/memory"
)

func TestAccessorRead(t *testing.T) {
	hub := memory.NewHub()
	s := hub.Context()
	a := NewAccessor(s)

	_, err := a.Read("users")
	var re *ReadError
	require.True(t, errors.As(err, &re))
	assert.ErrorIs(t, err, ErrAbsent)
	assert.Equal(t, "users", re.Key)

	require.NoError(t, s.Set("users", []byte(`{not json`)))
	_, err = a.Read("users")
	assert.ErrorIs(t, err, ErrMalformed)
	require.True(t, errors.As(err, &re))
	assert.NotEmpty(t, re.Detail())

	require.NoError(t, s.Set("users", []byte(`[{"id":1}]`)))
	v, err := a.Read("users")
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": float64(1)}}, v)
}

func TestAccessorReadUnavailable(t *testing.T) {
	hub := memory.NewHub()
	a := NewAccessor(hub.Context())
	boom := errors.New("io error")
	hub.FailReads(boom)

	_, err := a.Read("users")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAbsent)
}

func TestAccessorWrite(t *testing.T) {
	hub := memory.NewHub(memory.WithMaxValueBytes(4))
	s := hub.Context()
	a := NewAccessor(s)

	require.NoError(t, a.Write("users", []any{}))
	raw, err := s.Get("users")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(raw))

	err = a.Write("users", []string{"a long value"})
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.ErrorIs(t, err, ErrWriteFailure)
	assert.ErrorIs(t, err, kvstore.ErrQuotaExceeded)

	err = a.Write("users", make(chan int))
	assert.ErrorIs(t, err, ErrWriteFailure)
}

type panicStore struct {
	kvstore.Store
}

func (panicStore) Get(string) ([]byte, error) { panic("get exploded") }
func (panicStore) Set(string, []byte) error   { panic("set exploded") }

func TestAccessorNeverPanics(t *testing.T) {
	a := NewAccessor(panicStore{})

	_, err := a.Read("users")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = a.Write("users", []any{})
	assert.ErrorIs(t, err, ErrWriteFailure)
}
