package talondb

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"talondb/hotcache"
)

func TestOpenInsertGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.talondb")
	db, err := Open(path, WithPoolSize(8), WithMaxSize(4))
	require.NoError(t, err)
	defer db.Close()

	ok, err := db.Insert([]byte("a"), []byte("1"))
	require.NoError(t, err)
	require.True(t, ok)

	v, found, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.talondb")

	db, err := Open(path, WithPoolSize(8), WithMaxSize(4))
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		k := []byte(fmt.Sprintf("k%02d", i))
		v := []byte(fmt.Sprintf("v%02d", i))
		ok, err := db.Insert(k, v)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, db.Close())

	reopened, err := Open(path, WithPoolSize(8), WithMaxSize(4))
	require.NoError(t, err)
	defer reopened.Close()

	for i := 0; i < 6; i++ {
		k := []byte(fmt.Sprintf("k%02d", i))
		v := []byte(fmt.Sprintf("v%02d", i))
		got, found, err := reopened.Get(k)
		require.NoError(t, err)
		require.True(t, found, "key %d", i)
		require.Equal(t, v, got)
	}
}

func TestRemoveDeletesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.talondb")
	db, err := Open(path, WithPoolSize(8), WithMaxSize(4))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Insert([]byte("a"), []byte("1"))
	require.NoError(t, err)
	require.NoError(t, db.Remove([]byte("a")))

	_, found, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestCursorWalksInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.talondb")
	db, err := Open(path, WithPoolSize(16), WithMaxSize(4))
	require.NoError(t, err)
	defer db.Close()

	const n = 10
	for i := 0; i < n; i++ {
		k := []byte(fmt.Sprintf("k%02d", i))
		v := []byte(fmt.Sprintf("v%02d", i))
		_, err := db.Insert(k, v)
		require.NoError(t, err)
	}

	cur, err := db.Begin()
	require.NoError(t, err)
	defer cur.Close()

	count := 0
	for !cur.End() {
		wantK := []byte(fmt.Sprintf("k%02d", count))
		require.Equal(t, wantK, cur.Key())
		count++
		cur.Next()
	}
	require.Equal(t, n, count)
}

func TestHotCacheServesReadsAfterInsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.talondb")
	db, err := Open(path, WithPoolSize(8), WithMaxSize(4), WithHotCache(hotcache.DefaultConfig()))
	require.NoError(t, err)
	defer db.Close()

	ok, err := db.Insert([]byte("a"), []byte("1"))
	require.NoError(t, err)
	require.True(t, ok)

	v, found, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, db.Remove([]byte("a")))
	_, found, err = db.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.talondb")
	db, err := Open(path, WithPoolSize(8), WithMaxSize(4))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
}

func TestOperationsAfterCloseFail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.talondb")
	db, err := Open(path, WithPoolSize(8), WithMaxSize(4))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, _, err = db.Get([]byte("a"))
	require.Error(t, err)

	_, err = db.Insert([]byte("a"), []byte("1"))
	require.Error(t, err)
}
