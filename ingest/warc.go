package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/gurre/crawlingest/cache"
	"github.com/gurre/crawlingest/warc"
)

// WarcIngestor stitches successive cached archives into a single record
// stream. It pulls one archive at a time from the prefetch cache, emits
// every response-type record with the archive's derived timestamp, and
// transparently rolls to the next archive on end-of-archive.
type WarcIngestor struct {
	cache  *cache.Cache
	keep   bool
	logger zerolog.Logger

	cur *cache.Entry
	rdr *warc.Reader
	ts  float64
}

// Compile-time interface check.
var _ Ingestor = (*WarcIngestor)(nil)

// NewWarcIngestor creates the demultiplexer over a running cache. With
// keepLocalFiles set, consumed archives stay on disk.
func NewWarcIngestor(c *cache.Cache, keepLocalFiles bool, logger zerolog.Logger) *WarcIngestor {
	return &WarcIngestor{cache: c, keep: keepLocalFiles, logger: logger}
}

// Next returns the next response-type record. Non-response records are
// skipped, malformed records are logged and skipped, and end-of-archive
// rolls to the next cache entry. ErrEndOfStream propagates once the cache
// is drained and the index exhausted.
func (in *WarcIngestor) Next(ctx context.Context) (Record, error) {
	for {
		if in.rdr == nil {
			if err := in.roll(ctx); err != nil {
				return Record{}, err
			}
		}

		rec, err := in.rdr.Next()
		if errors.Is(err, io.EOF) {
			in.logger.Info().Msgf("Hit end of archive %s", in.cur.Locator.Key)
			in.closeCurrent()
			continue
		}
		if errors.Is(err, warc.ErrMalformedRecord) {
			in.logger.Warn().Msgf("Archive load failed: %v", err)
			continue
		}
		if err != nil {
			return Record{}, fmt.Errorf("failed to read archive %s: %w", in.cur.Locator.Key, err)
		}

		if rec.Type != "response" {
			continue
		}
		return NewRecord(rec.Header("WARC-Target-URI"), in.ts, rec.Content), nil
	}
}

// roll takes and opens the next cache entry. The finished archive has
// already been released by closeCurrent.
func (in *WarcIngestor) roll(ctx context.Context) error {
	entry, err := in.cache.Take(ctx)
	if errors.Is(err, io.EOF) {
		return ErrEndOfStream
	}
	if err != nil {
		return err
	}

	rdr, err := warc.NewReader(entry.File)
	if err != nil {
		entry.Discard(in.keep)
		return fmt.Errorf("failed to open archive %s: %w", entry.Locator.Key, err)
	}

	in.cur = entry
	in.rdr = rdr
	in.ts = entry.Locator.Timestamp()
	return nil
}

// closeCurrent releases the finished archive and its local file.
func (in *WarcIngestor) closeCurrent() {
	if in.rdr != nil {
		_ = in.rdr.Close()
		in.rdr = nil
	}
	if in.cur != nil {
		in.cur.Discard(in.keep)
		in.cur = nil
	}
}
