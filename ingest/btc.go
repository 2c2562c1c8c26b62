package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurre/crawlingest/storage"
)

// btcMaxAttempts bounds per-block retries on transient transport faults.
const btcMaxAttempts = 3

// BTCIngestor fetches per-block blockchain JSON over HTTP. Its input is a
// single line "<base_url>,<begin>,<end>"; it emits one record per block
// index in [begin, end] with the fetch wall-clock as timestamp.
//
// Transient transport faults retry with exponential backoff; a block that
// still fails is skipped with a warning. Only fatal faults (context
// cancellation, a block URL that cannot be parsed into a request) terminate
// the stream, so a single bad block can never end the whole run.
type BTCIngestor struct {
	client  *http.Client
	baseURL string
	current int64
	end     int64
	logger  zerolog.Logger
}

var _ Ingestor = (*BTCIngestor)(nil)

// NewBTCIngestor parses the input spec. The spec is configuration: any
// parse failure is fatal before ingestion starts.
func NewBTCIngestor(input string, logger zerolog.Logger) (*BTCIngestor, error) {
	parts := strings.Split(strings.TrimSpace(input), ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("bad BTC input %q: expected <base_url>,<begin>,<end>", input)
	}
	begin, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad BTC begin block %q: %w", parts[1], err)
	}
	end, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad BTC end block %q: %w", parts[2], err)
	}
	if end < begin {
		return nil, fmt.Errorf("bad BTC range: end %d before begin %d", end, begin)
	}

	return &BTCIngestor{
		client:  &http.Client{Timeout: 2 * time.Minute},
		baseURL: strings.TrimRight(parts[0], "/"),
		current: begin,
		end:     end,
		logger:  logger,
	}, nil
}

// Next fetches the next block. ErrEndOfStream once the range is done.
func (b *BTCIngestor) Next(ctx context.Context) (Record, error) {
	for b.current <= b.end {
		block := b.current
		b.current++

		url := fmt.Sprintf("%s/%d", b.baseURL, block)
		body, err := b.fetchBlock(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return Record{}, ctx.Err()
			}
			var uerr *neturl.Error
			if errors.As(err, &uerr) && uerr.Op == "parse" {
				return Record{}, fmt.Errorf("cannot build request for block %d: %w", block, err)
			}
			b.logger.Warn().Msgf("Skipping block %d: %v", block, err)
			continue
		}
		ts := float64(time.Now().UnixNano()) / 1e9
		return NewRecord(url, ts, body), nil
	}
	return Record{}, ErrEndOfStream
}

// fetchBlock GETs one block with the retry ladder.
func (b *BTCIngestor) fetchBlock(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= btcMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-2)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := b.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryableFetch(err) {
			return nil, err
		}
		b.logger.Warn().Msgf("Retrying (%d) after transport error: %v", attempt, err)
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", btcMaxAttempts, lastErr)
}

func (b *BTCIngestor) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("format", "json")
	req.URL.RawQuery = q.Encode()

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("server error: %s", resp.Status)
	}
	return body, nil
}

// retryableFetch widens storage.IsTransient with the HTTP-level faults the
// block API is known to throw.
func retryableFetch(err error) bool {
	if storage.IsTransient(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "server error") ||
		strings.Contains(msg, "EOF")
}
