// Package cache implements the bounded prefetch cache sitting between the
// index stream and the archive demultiplexer. A background fetcher pulls
// locators off the index, downloads and validates the archives in parallel
// batches, and pushes ready-to-read local copies onto a FIFO the consumer
// drains.
package cache

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gurre/crawlingest/metrics"
	"github.com/gurre/crawlingest/storage"
	"github.com/gurre/crawlingest/warc"
)

const (
	// DefaultMaxLen bounds the FIFO when no override is given.
	DefaultMaxLen = 4

	// fullBackoff is how long the fetcher sleeps when the cache is at
	// capacity and the index is not yet exhausted.
	fullBackoff = 10 * time.Second

	// takePoll bounds each wait in Take so a slow prefetcher cannot
	// deadlock a terminating consumer.
	takePoll = 5 * time.Second

	// maxFetchAttempts bounds per-download retries on transient faults.
	maxFetchAttempts = 3
)

// Entry is one validated local archive awaiting consumption. The consumer
// owns it after Take and must call Discard when done with it.
type Entry struct {
	Locator warc.Locator
	File    *os.File
	Path    string
}

// Discard closes the local file and deletes it unless keep is set.
func (e *Entry) Discard(keep bool) {
	if e.File != nil {
		_ = e.File.Close()
	}
	if !keep && e.Path != "" {
		_ = os.Remove(e.Path)
	}
}

// Options tune the cache.
type Options struct {
	MaxLen int    // FIFO bound; DefaultMaxLen when <= 0
	TmpDir string // Download directory; os.TempDir() when empty
}

// Cache is the bounded FIFO plus its background fetcher.
type Cache struct {
	store   storage.ObjectStore
	index   io.ReadCloser
	logger  zerolog.Logger
	metrics *metrics.Metrics
	maxLen  int
	tmpDir  string

	mu     sync.Mutex
	fifo   []*Entry
	closed bool // index exhausted and fetcher exited

	notEmpty chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
}

// New creates the cache and starts the background fetcher over the index
// stream. The index is closed by the fetcher on end-of-index or Stop.
func New(store storage.ObjectStore, index io.ReadCloser, m *metrics.Metrics, logger zerolog.Logger, opts Options) *Cache {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	tmpDir := opts.TmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		store:    store,
		index:    index,
		logger:   logger,
		metrics:  m,
		maxLen:   maxLen,
		tmpDir:   tmpDir,
		notEmpty: make(chan struct{}, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	go c.fetch(ctx)
	return c
}

// Take pops the head entry, blocking in timed polls until the FIFO is
// non-empty or the index is exhausted with nothing left to hand out, in
// which case it fails with io.EOF.
func (c *Cache) Take(ctx context.Context) (*Entry, error) {
	for {
		c.mu.Lock()
		if len(c.fifo) > 0 {
			entry := c.fifo[0]
			c.fifo = c.fifo[1:]
			c.mu.Unlock()
			return entry, nil
		}
		if c.closed {
			c.mu.Unlock()
			return nil, io.EOF
		}
		c.mu.Unlock()

		select {
		case <-c.notEmpty:
		case <-time.After(takePoll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Done is closed when the fetcher has exited.
func (c *Cache) Done() <-chan struct{} {
	return c.done
}

// Stop cancels the fetcher and discards whatever is still cached. Used by
// the driver on fatal errors so no downloads are left stranded.
func (c *Cache) Stop() {
	c.cancel()
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.fifo {
		e.Discard(false)
	}
	c.fifo = nil
	c.closed = true
}

// signal wakes one waiting consumer without blocking.
func (c *Cache) signal() {
	select {
	case c.notEmpty <- struct{}{}:
	default:
	}
}

// fetch is the background fetcher loop: fill a batch up to the free room,
// download it in parallel, push in completion order, back off while the
// cache is full, exit on end-of-index.
func (c *Cache) fetch(ctx context.Context) {
	defer close(c.done)
	defer func() { _ = c.index.Close() }()

	scanner := newLineScanner(c.index)
	exhausted := false

	for !exhausted {
		c.mu.Lock()
		room := c.maxLen - len(c.fifo)
		c.mu.Unlock()

		batch := make([]warc.Locator, 0, room)
		for len(batch) < room {
			line, ok := scanner.next()
			if !ok {
				c.logger.Warn().Msg("Hit end of index")
				exhausted = true
				break
			}
			if line == "" {
				continue
			}
			loc, err := warc.ParseLocator(line)
			if err != nil {
				c.logger.Warn().Msgf("Skipping index line: %v", err)
				continue
			}
			batch = append(batch, loc)
		}

		if len(batch) > 0 {
			c.fetchBatch(ctx, batch)
			c.signal()
		}

		if exhausted {
			break
		}

		if len(batch) == 0 {
			select {
			case <-time.After(fullBackoff):
			case <-ctx.Done():
				c.markClosed()
				return
			}
		}

		select {
		case <-ctx.Done():
			c.markClosed()
			return
		default:
		}
	}

	c.markClosed()
}

func (c *Cache) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.signal()
}

// fetchBatch downloads the batch in parallel. A failing entry is skipped
// with a warning; it never fails the batch.
func (c *Cache) fetchBatch(ctx context.Context, batch []warc.Locator) {
	limit := len(batch)
	if limit > c.maxLen {
		limit = c.maxLen
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, loc := range batch {
		g.Go(func() error {
			entry, err := c.fetchOne(gctx, loc)
			if err != nil {
				c.logger.Warn().Msgf("Skipping %s: %v", loc.Key, err)
				if c.metrics != nil {
					c.metrics.ArchiveSkipped()
				}
				return nil
			}
			c.mu.Lock()
			c.fifo = append(c.fifo, entry)
			c.mu.Unlock()
			if c.metrics != nil {
				c.metrics.ArchiveFetched()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// fetchOne downloads, validates and opens one archive. Transient transport
// faults retry with exponential backoff before the entry is given up on.
func (c *Cache) fetchOne(ctx context.Context, loc warc.Locator) (*Entry, error) {
	path := filepath.Join(c.tmpDir, uuid.NewString())
	c.logger.Info().Msgf("Downloading %s to %s", loc.Key, path)

	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-2)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		lastErr = c.download(ctx, loc, path)
		if lastErr == nil {
			break
		}
		if !storage.IsTransient(lastErr) {
			_ = os.Remove(path)
			return nil, lastErr
		}
		c.logger.Warn().Msgf("Retrying (%d) %s: %v", attempt, loc.Key, lastErr)
	}
	if lastErr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("giving up after %d attempts: %w", maxFetchAttempts, lastErr)
	}

	if err := warc.ValidateOrRecompress(path, c.logger); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to reopen %s: %w", path, err)
	}
	return &Entry{Locator: loc, File: f, Path: path}, nil
}

func (c *Cache) download(ctx context.Context, loc warc.Locator, path string) error {
	body, err := c.store.Fetch(ctx, loc.Key, loc.Offset, loc.Length)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Len returns the current FIFO size.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fifo)
}

// lineScanner trims index lines as they are pulled.
type lineScanner struct {
	s *bufio.Scanner
}

func newLineScanner(r io.Reader) *lineScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &lineScanner{s: s}
}

func (l *lineScanner) next() (string, bool) {
	if !l.s.Scan() {
		return "", false
	}
	return strings.TrimSpace(l.s.Text()), true
}
