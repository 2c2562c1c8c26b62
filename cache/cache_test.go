package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurre/crawlingest/metrics"
	"github.com/gurre/crawlingest/storage"
	"github.com/gurre/crawlingest/warc"
)

// writeTestArchive writes one valid gzipped archive with a single response
// record and returns its path.
func writeTestArchive(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	w := warc.NewWriter(f, true)
	require.NoError(t, w.WriteResponse("http://example.com", []byte(`{"ok":true}`)))
	require.NoError(t, f.Close())
	return path
}

func indexOf(paths ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(paths, "\n") + "\n"))
}

func newTestCache(t *testing.T, index io.ReadCloser, maxLen int) *Cache {
	t.Helper()
	c := New(storage.NewFileStore(""), index, metrics.NewMetrics(), zerolog.Nop(), Options{
		MaxLen: maxLen,
		TmpDir: t.TempDir(),
	})
	t.Cleanup(c.Stop)
	return c
}

func TestTakeReturnsEntriesThenEOF(t *testing.T) {
	dir := t.TempDir()
	a := writeTestArchive(t, dir, "a.warc.gz")
	b := writeTestArchive(t, dir, "b.warc.gz")

	c := newTestCache(t, indexOf(a, b), 4)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		entry, err := c.Take(ctx)
		require.NoError(t, err)
		seen[entry.Locator.Key] = true
		entry.Discard(false)
	}
	assert.True(t, seen[a])
	assert.True(t, seen[b])

	_, err := c.Take(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestEmptyIndexTerminatesImmediately(t *testing.T) {
	c := newTestCache(t, indexOf(), 4)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := c.Take(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCacheNeverExceedsBound(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 6)
	for i := range paths {
		paths[i] = writeTestArchive(t, dir, fmt.Sprintf("a%d.warc.gz", i))
	}

	c := newTestCache(t, indexOf(paths...), 2)

	// The fetcher backs off for 10 s whenever the cache is full, so
	// draining six entries through a two-slot cache takes a while.
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	taken := 0
	for {
		assert.LessOrEqual(t, c.Len(), 2)
		entry, err := c.Take(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		entry.Discard(false)
		taken++
		assert.LessOrEqual(t, c.Len(), 2)
	}
	assert.Equal(t, 6, taken)
}

func TestCorruptArchiveIsSkipped(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.warc.gz")
	require.NoError(t, os.WriteFile(bad, []byte("not an archive at all"), 0644))
	good := writeTestArchive(t, dir, "good.warc.gz")

	c := newTestCache(t, indexOf(bad, good), 4)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry, err := c.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, good, entry.Locator.Key)
	entry.Discard(false)

	_, err = c.Take(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMalformedIndexLineIsSkipped(t *testing.T) {
	dir := t.TempDir()
	good := writeTestArchive(t, dir, "good.warc.gz")
	index := io.NopCloser(strings.NewReader("key with too many tokens 1 2 3\n" + good + "\n"))

	c := newTestCache(t, index, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry, err := c.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, good, entry.Locator.Key)
	entry.Discard(false)

	_, err = c.Take(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDamagedArchiveIsRecompressed(t *testing.T) {
	dir := t.TempDir()

	// One valid member followed by trailing garbage: check fails,
	// recompression salvages the record.
	var buf bytes.Buffer
	w := warc.NewWriter(&buf, true)
	require.NoError(t, w.WriteResponse("http://example.com", []byte("x")))
	buf.WriteString("trailing garbage that is not gzip")
	damaged := filepath.Join(dir, "damaged.warc.gz")
	require.NoError(t, os.WriteFile(damaged, buf.Bytes(), 0644))

	c := newTestCache(t, indexOf(damaged), 4)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry, err := c.Take(ctx)
	require.NoError(t, err)
	defer entry.Discard(false)

	r, err := warc.NewReader(entry.File)
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", rec.Header("WARC-Target-URI"))
}
