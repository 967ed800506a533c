package pageio

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(8)
	f, err := Create(filepath.Join(dir, "t.db"), 6, cache, nil)
	require.NoError(t, err)
	defer f.Close()

	buf := bytes.Repeat([]byte{0xAB}, PageSize)
	n, err := f.AppendPage(buf)
	require.NoError(t, err)
	require.Equal(t, int32(0), n)
	require.Equal(t, int32(1), f.NumPages())

	got, err := f.ReadPage(0)
	require.NoError(t, err)
	require.Equal(t, buf, got)

	buf2 := bytes.Repeat([]byte{0xCD}, PageSize)
	require.NoError(t, f.WritePage(0, buf2))
	got2, err := f.ReadPage(0)
	require.NoError(t, err)
	require.Equal(t, buf2, got2)
}

func TestReadPageOutOfRangeFails(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(8)
	f, err := Create(filepath.Join(dir, "t.db"), 1, cache, nil)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.ReadPage(0)
	require.Error(t, err)
}

func TestHeaderPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.db")
	cache := NewCache(8)

	f, err := Create(path, 6, cache, nil)
	require.NoError(t, err)
	copy(f.HeaderRegion(), []byte("hello"))
	_, err = f.AppendPage(bytes.Repeat([]byte{1}, PageSize))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := Open(path, 6, cache, nil)
	require.NoError(t, err)
	defer f2.Close()
	require.Equal(t, int32(1), f2.NumPages())
	require.Equal(t, []byte("hello"), f2.HeaderRegion()[:5])
}

func TestCacheServesWriteThroughData(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(1) // force eviction pressure
	f, err := Create(filepath.Join(dir, "t.db"), 1, cache, nil)
	require.NoError(t, err)
	defer f.Close()

	a := bytes.Repeat([]byte{1}, PageSize)
	b := bytes.Repeat([]byte{2}, PageSize)
	_, err = f.AppendPage(a)
	require.NoError(t, err)
	_, err = f.AppendPage(b) // evicts page 0 from a 1-entry cache
	require.NoError(t, err)

	got, err := f.ReadPage(0)
	require.NoError(t, err)
	require.Equal(t, a, got, "page 0 must read back correctly even after cache eviction")
}
