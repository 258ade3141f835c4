package propagation

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFileStore(fs)

	t.Run("missing file", func(t *testing.T) {
		data, exists, err := store.Read("/app/frontend/.env")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.Nil(t, data)
	})

	t.Run("write creates directories", func(t *testing.T) {
		require.NoError(t, store.WriteAtomic("/app/frontend/.env", []byte("A_ADDRESS=0x1\n")))

		data, exists, err := store.Read("/app/frontend/.env")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, "A_ADDRESS=0x1\n", string(data))

		info, err := fs.Stat("/app/frontend/.env")
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	})

	t.Run("replace keeps mode and leaves no temp files", func(t *testing.T) {
		require.NoError(t, fs.Chmod("/app/frontend/.env", 0o600))
		require.NoError(t, store.WriteAtomic("/app/frontend/.env", []byte("A_ADDRESS=0x2\n")))

		data, _, err := store.Read("/app/frontend/.env")
		require.NoError(t, err)
		assert.Equal(t, "A_ADDRESS=0x2\n", string(data))

		info, err := fs.Stat("/app/frontend/.env")
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		entries, err := afero.ReadDir(fs, "/app/frontend")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, ".env", entries[0].Name())
	})
}
