package history

import (
	"testing"

	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T, size int) map[string]Store {
	t.Helper()
	pebbleStore, err := OpenFS(vfs.NewMem(), "history", size)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, pebbleStore.Close()) })
	return map[string]Store{
		"memory": NewMemStore(size),
		"pebble": pebbleStore,
	}
}

func TestStore_AddAndQuery(t *testing.T) {
	for name, store := range openStores(t, 0) {
		t.Run(name, func(t *testing.T) {
			seq, err := store.NextCmdSeq()
			require.NoError(t, err)
			require.Equal(t, uint64(1), seq)
			require.Empty(t, store.LastCommand())

			for _, text := range []string{"db.c.find()", "it", "reset"} {
				_, err := store.AddCmd(text)
				require.NoError(t, err)
			}

			seq, err = store.NextCmdSeq()
			require.NoError(t, err)
			require.Equal(t, uint64(4), seq)

			text, err := store.Cmd(2)
			require.NoError(t, err)
			require.Equal(t, "it", text)

			_, err = store.Cmd(9)
			require.ErrorIs(t, err, ErrNoMatchingCmd)

			cmds, err := store.CmdsWithSeq(2, 4)
			require.NoError(t, err)
			require.Equal(t, []Cmd{{Text: "it", Seq: 2}, {Text: "reset", Seq: 3}}, cmds)

			require.Equal(t, "it", store.LastCommand())
		})
	}
}

func TestStore_Cap(t *testing.T) {
	for name, store := range openStores(t, 2) {
		t.Run(name, func(t *testing.T) {
			for _, text := range []string{"a", "b", "c", "d"} {
				_, err := store.AddCmd(text)
				require.NoError(t, err)
			}

			cmds, err := store.CmdsWithSeq(1, 10)
			require.NoError(t, err)
			require.Equal(t, []Cmd{{Text: "c", Seq: 3}, {Text: "d", Seq: 4}}, cmds)

			_, err = store.Cmd(1)
			require.ErrorIs(t, err, ErrNoMatchingCmd)
			require.Equal(t, "c", store.LastCommand())

			seq, err := store.AddCmd("e")
			require.NoError(t, err)
			require.Equal(t, uint64(5), seq)
		})
	}
}

func TestPebbleStore_Reopen(t *testing.T) {
	fs := vfs.NewMem()
	store, err := OpenFS(fs, "history", 10)
	require.NoError(t, err)
	for _, text := range []string{"show collections", "reset"} {
		_, err := store.AddCmd(text)
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	store, err = OpenFS(fs, "history", 10)
	require.NoError(t, err)
	defer store.Close()

	seq, err := store.NextCmdSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(3), seq)
	require.Equal(t, "show collections", store.LastCommand())
}
