// Package ingest defines the normalized record type flowing through the
// pipeline and the contract every front-end ingestor implements. An ingestor
// produces one Record per call until the underlying input is exhausted, at
// which point it returns ErrEndOfStream.
package ingest

import (
	"context"
	"errors"
	"strings"
)

// ErrEndOfStream is the normal termination signal from ingestors. It is not
// a failure: the driver treats it as "no more records" and begins shutdown.
var ErrEndOfStream = errors.New("end of stream")

// Record is the normalized unit flowing through the pipeline.
// Content is lossily decoded UTF-8; it may be empty but never carries
// invalid byte sequences.
type Record struct {
	URI     string  // Source identifier of the payload
	TS      float64 // Seconds since epoch, authoritative for this record
	Content string  // Payload body
}

// NewRecord builds a Record from raw content bytes, replacing invalid UTF-8
// sequences so downstream JSON serialization never fails on the payload.
func NewRecord(uri string, ts float64, content []byte) Record {
	return Record{
		URI:     uri,
		TS:      ts,
		Content: strings.ToValidUTF8(string(content), "�"),
	}
}

// Ingestor is the pull contract shared by the warc-index, csv-file and btc
// front-ends: one record per call, ErrEndOfStream when exhausted.
type Ingestor interface {
	Next(ctx context.Context) (Record, error)
}
