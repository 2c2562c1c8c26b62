package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurre/crawlingest/cache"
	"github.com/gurre/crawlingest/metrics"
	"github.com/gurre/crawlingest/storage"
	"github.com/gurre/crawlingest/warc"
)

// archiveSpec describes one record of a generated test archive.
type archiveSpec struct {
	recType string
	uri     string
	content string
}

func writeArchive(t *testing.T, path string, specs []archiveSpec) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := warc.NewWriter(f, true)
	for _, s := range specs {
		err := w.WriteRecord(map[string]string{
			"WARC-Type":       s.recType,
			"WARC-Target-URI": s.uri,
		}, []byte(s.content))
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
}

func newWarcIngestor(t *testing.T, paths ...string) *WarcIngestor {
	t.Helper()
	index := io.NopCloser(strings.NewReader(strings.Join(paths, "\n") + "\n"))
	c := cache.New(storage.NewFileStore(""), index, metrics.NewMetrics(), zerolog.Nop(), cache.Options{
		MaxLen: 4,
		TmpDir: t.TempDir(),
	})
	t.Cleanup(c.Stop)
	return NewWarcIngestor(c, false, zerolog.Nop())
}

func drain(t *testing.T, in Ingestor) []Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var out []Record
	for {
		rec, err := in.Next(ctx)
		if err == ErrEndOfStream {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestWarcIngestorEmitsResponsesInArchiveOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.warc.gz")
	writeArchive(t, path, []archiveSpec{
		{"response", "http://foo.com", `{"first":1}`},
		{"response", "http://bar.com", `{"second":2}`},
		{"response", "http://baz.com", `{"third":3}`},
	})

	records := drain(t, newWarcIngestor(t, path))
	require.Len(t, records, 3)
	assert.Equal(t, "http://foo.com", records[0].URI)
	assert.Equal(t, "http://bar.com", records[1].URI)
	assert.Equal(t, "http://baz.com", records[2].URI)
	assert.Equal(t, `{"second":2}`, records[1].Content)
}

func TestWarcIngestorSkipsNonResponseRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.warc.gz")
	writeArchive(t, path, []archiveSpec{
		{"response", "http://foo.com", "a"},
		{"metadata", "http://skip.com", "m"},
		{"response", "http://baz.com", "c"},
	})

	records := drain(t, newWarcIngestor(t, path))
	require.Len(t, records, 2)
	assert.Equal(t, "http://foo.com", records[0].URI)
	assert.Equal(t, "http://baz.com", records[1].URI)
}

func TestWarcIngestorOnlyNonResponseYieldsNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.warc.gz")
	writeArchive(t, path, []archiveSpec{
		{"metadata", "http://skip.com", "m"},
		{"request", "http://skip.com", "r"},
	})

	records := drain(t, newWarcIngestor(t, path))
	assert.Empty(t, records)
}

func TestWarcIngestorRollsAcrossArchives(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.warc.gz")
	b := filepath.Join(dir, "b.warc.gz")
	writeArchive(t, a, []archiveSpec{{"response", "http://a.com", "a"}})
	writeArchive(t, b, []archiveSpec{{"response", "http://b.com", "b"}})

	records := drain(t, newWarcIngestor(t, a, b))
	require.Len(t, records, 2)

	uris := map[string]bool{records[0].URI: true, records[1].URI: true}
	assert.True(t, uris["http://a.com"])
	assert.True(t, uris["http://b.com"])
}

func TestWarcIngestorAttachesDerivedTimestamp(t *testing.T) {
	dir := t.TempDir()
	// The key carries a 14-digit stamp, so every record must inherit it.
	path := filepath.Join(dir, "20210118030549-00000.warc.gz")
	writeArchive(t, path, []archiveSpec{
		{"response", "http://a.com", "a"},
		{"response", "http://b.com", "b"},
	})

	want := warc.Locator{Key: path}.Timestamp()
	require.NotZero(t, want)

	records := drain(t, newWarcIngestor(t, path))
	require.Len(t, records, 2)
	assert.Equal(t, want, records[0].TS)
	assert.Equal(t, want, records[1].TS)
}

func TestWarcIngestorEmptyIndex(t *testing.T) {
	records := drain(t, newWarcIngestor(t))
	assert.Empty(t, records)
}

func TestWarcIngestorDeletesConsumedArchives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.warc.gz")
	writeArchive(t, path, []archiveSpec{{"response", "http://a.com", "a"}})

	tmp := t.TempDir()
	index := io.NopCloser(strings.NewReader(path + "\n"))
	c := cache.New(storage.NewFileStore(""), index, metrics.NewMetrics(), zerolog.Nop(), cache.Options{
		MaxLen: 1,
		TmpDir: tmp,
	})
	t.Cleanup(c.Stop)
	in := NewWarcIngestor(c, false, zerolog.Nop())

	records := drain(t, in)
	require.Len(t, records, 1)

	// The local copy is removed once the archive is fully consumed.
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
