package backends

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/file"
)

func TestOpenEachBackend(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s, err := Open(Config{Backend: name, Dir: t.TempDir()})
			require.NoError(t, err)

			require.NoError(t, s.Set("users", []byte(`[]`)))
			got, err := s.Get("users")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			require.NoError(t, s.Close())
		})
	}
}

func TestOpenDefaultsToFile(t *testing.T) {
	s, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &file.Store{}, s)
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(Config{Backend: "etcd", Dir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etcd")
}

func TestLocation(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, Location(Config{Dir: dir}))
	assert.Equal(t, filepath.Join(dir, "store.db"), Location(Config{Backend: SQLite, Dir: dir}))
	assert.Equal(t, filepath.Join(dir, "badger"), Location(Config{Backend: Badger, Dir: dir}))
	assert.Equal(t, "memory", Location(Config{Backend: Memory, Dir: dir}))
	assert.Equal(t, file.DefaultDir(), Location(Config{Backend: File}))
}
