package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	sqlite, err := OpenSQLiteStorage(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

func TestStorage_GetMissing(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			v, err := s.Get(context.Background(), KeyToken)
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestStorage_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, map[string][]byte{
				KeyToken: []byte("tok"),
				KeyUser:  []byte(`{"id":"1"}`),
			}))

			v, err := s.Get(ctx, KeyToken)
			require.NoError(t, err)
			assert.Equal(t, "tok", string(v))

			// 上書き
			require.NoError(t, s.Set(ctx, map[string][]byte{KeyToken: []byte("tok2")}))
			v, err = s.Get(ctx, KeyToken)
			require.NoError(t, err)
			assert.Equal(t, "tok2", string(v))

			require.NoError(t, s.Delete(ctx, KeyToken, KeyUser, "unknown"))
			v, err = s.Get(ctx, KeyUser)
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestMemoryStorage_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	in := []byte("abc")
	require.NoError(t, s.Set(ctx, map[string][]byte{"k": in}))
	in[0] = 'x'

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	v[1] = 'y'

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := OpenSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, map[string][]byte{KeyToken: []byte("persisted")}))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLiteStorage(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(v))
}

func TestOpenSQLiteStorage_InvalidPath(t *testing.T) {
	_, err := OpenSQLiteStorage(filepath.Join(t.TempDir(), "missing", "dir", "session.db"))
	assert.Error(t, err)
}
