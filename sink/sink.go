// Package sink owns the output artifact. Workers fan rows in over a
// bounded channel; a single goroutine serializes, compresses and appends
// them, which is what makes every output line whole without a lock held
// across flushes.
//
// Each line is base64(gzip(json(row))) followed by a newline. A decoder
// reverses the three steps to recover the row.
package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/gurre/crawlingest/process"
	"github.com/gurre/crawlingest/storage"
)

// flushEvery is the row interval between buffered-writer flushes.
const flushEvery = 100

// Sink appends encoded rows to a local file and, for s3:// descriptors,
// uploads the staged artifact on CloseAndFlush.
//
// A file:// artifact is opened in append mode: two concurrent runs against
// the same path interleave whole lines across runs.
type Sink struct {
	desc   storage.Descriptor
	store  storage.ObjectStore
	logger zerolog.Logger

	rows chan process.Row
	done chan struct{}

	f         *os.File // nil when writing to stdout
	w         *bufio.Writer
	localPath string // staging file for s3 uploads

	closeOnce sync.Once
	closeErr  error
}

// New opens the artifact named by desc (stdout for the zero descriptor)
// and starts the appender goroutine. The store is only needed for s3
// descriptors.
func New(desc storage.Descriptor, store storage.ObjectStore, logger zerolog.Logger) (*Sink, error) {
	s := &Sink{
		desc:   desc,
		store:  store,
		logger: logger,
		rows:   make(chan process.Row, flushEvery),
		done:   make(chan struct{}),
	}

	switch {
	case desc.IsZero():
		s.w = bufio.NewWriter(os.Stdout)
	case desc.Scheme == "file":
		f, err := os.OpenFile(desc.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open output %s: %w", desc.Path, err)
		}
		s.f = f
		s.w = bufio.NewWriter(f)
	case desc.Scheme == "s3":
		if store == nil {
			return nil, fmt.Errorf("s3 output %s needs an object store", desc.Raw)
		}
		name := fmt.Sprintf("%s%s-%s", uuid.NewString(), desc.Bucket, strings.ReplaceAll(desc.Path, "/", ":"))
		s.localPath = filepath.Join(os.TempDir(), name)
		f, err := os.Create(s.localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create staging file: %w", err)
		}
		s.f = f
		s.w = bufio.NewWriter(f)
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrBadURI, desc.Raw)
	}

	go s.run()
	return s, nil
}

// Rows is the fan-in channel workers append to.
func (s *Sink) Rows() chan<- process.Row {
	return s.rows
}

// run drains the row channel. Single ownership of the writer is the
// whole-line guarantee.
func (s *Sink) run() {
	defer close(s.done)
	count := 0
	for row := range s.rows {
		line, err := EncodeRow(row)
		if err != nil {
			s.logger.Error().Msgf("Failed to encode row: %v", err)
			continue
		}
		if _, err := s.w.WriteString(line); err != nil {
			s.logger.Error().Msgf("Failed to append row: %v", err)
			continue
		}
		if err := s.w.WriteByte('\n'); err != nil {
			s.logger.Error().Msgf("Failed to append row: %v", err)
			continue
		}
		count++
		if count%flushEvery == 0 {
			s.logger.Info().Msgf("Appending %d results", flushEvery)
			if err := s.w.Flush(); err != nil {
				s.logger.Error().Msgf("Failed to flush output: %v", err)
			}
		}
	}
}

// CloseAndFlush stops the appender, flushes and closes the local artifact,
// and uploads it when the descriptor is remote. Idempotent: the second and
// later calls return the first result.
func (s *Sink) CloseAndFlush(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.rows)
		<-s.done

		if err := s.w.Flush(); err != nil {
			s.closeErr = fmt.Errorf("failed to flush output: %w", err)
			return
		}
		if s.f != nil {
			if err := s.f.Close(); err != nil {
				s.closeErr = fmt.Errorf("failed to close output: %w", err)
				return
			}
		}

		if s.desc.Scheme == "s3" {
			if _, err := s.store.Put(ctx, s.localPath, s.desc); err != nil {
				s.closeErr = fmt.Errorf("failed to upload output: %w", err)
				return
			}
			_ = os.Remove(s.localPath)
		}
	})
	return s.closeErr
}

// EncodeRow serializes one row to its output line (without the trailing
// newline).
func EncodeRow(row process.Row) (string, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("failed to serialize row: %w", err)
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := gz.Write(data); err != nil {
		return "", fmt.Errorf("failed to compress row: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to compress row: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeLine recovers a row from one output line.
func DecodeLine(line string) (process.Row, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line))
	if err != nil {
		return nil, fmt.Errorf("failed to decode line: %w", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress line: %w", err)
	}
	data, err := io.ReadAll(gz)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decompress line: %w", err)
	}

	var row process.Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to parse line: %w", err)
	}
	return row, nil
}
