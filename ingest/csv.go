package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// CSVIngestor emits one record per CSV row. The first row is a header and
// must carry uri and ts columns; the record content is the whole row as a
// JSON object.
type CSVIngestor struct {
	f      *os.File
	rdr    *csv.Reader
	header []string
	uriIdx int
	tsIdx  int
	logger zerolog.Logger
}

var _ Ingestor = (*CSVIngestor)(nil)

// NewCSVIngestor opens the CSV file and validates the header.
func NewCSVIngestor(path string, logger zerolog.Logger) (*CSVIngestor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	rdr := csv.NewReader(f)
	header, err := rdr.Read()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	uriIdx, tsIdx := -1, -1
	for i, name := range header {
		switch name {
		case "uri":
			uriIdx = i
		case "ts":
			tsIdx = i
		}
	}
	if uriIdx < 0 || tsIdx < 0 {
		_ = f.Close()
		return nil, fmt.Errorf("CSV header must contain uri and ts columns, got %v", header)
	}

	return &CSVIngestor{
		f:      f,
		rdr:    rdr,
		header: header,
		uriIdx: uriIdx,
		tsIdx:  tsIdx,
		logger: logger,
	}, nil
}

// Next returns the next row as a record. Rows with an unparseable ts are
// skipped with a warning.
func (c *CSVIngestor) Next(ctx context.Context) (Record, error) {
	for {
		row, err := c.rdr.Read()
		if errors.Is(err, io.EOF) {
			_ = c.f.Close()
			return Record{}, ErrEndOfStream
		}
		if err != nil {
			return Record{}, fmt.Errorf("failed to read CSV row: %w", err)
		}

		ts, err := strconv.ParseFloat(row[c.tsIdx], 64)
		if err != nil {
			c.logger.Warn().Msgf("Skipping CSV row with bad ts %q: %v", row[c.tsIdx], err)
			continue
		}

		entry := make(map[string]string, len(c.header))
		for i, name := range c.header {
			if i < len(row) {
				entry[name] = row[i]
			}
		}
		content, err := json.Marshal(entry)
		if err != nil {
			return Record{}, fmt.Errorf("failed to encode CSV row: %w", err)
		}

		return NewRecord(row[c.uriIdx], ts, content), nil
	}
}
