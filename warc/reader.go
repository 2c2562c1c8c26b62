package warc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrMalformedRecord is returned when a record cannot be parsed from the
// archive. The reader has already advanced past the damage, so the caller
// can log and keep iterating.
var ErrMalformedRecord = errors.New("archive load failed")

// RawRecord is one record as read from an archive: the header block plus
// the full content body.
type RawRecord struct {
	Type    string            // Value of the WARC-Type header
	Headers map[string]string // All record headers, original names
	Content []byte            // Content block, Content-Length bytes
}

// Header returns a header value by case-insensitive name.
func (r *RawRecord) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Reader iterates records in a web archive file. Gzipped archives are
// detected by magic bytes; each record is expected in its own gzip member,
// which is what lets a damaged member be skipped without losing the rest
// of the file.
type Reader struct {
	br         *bufio.Reader
	gz         *gzip.Reader
	compressed bool
}

// NewReader wraps r. The source is not closed by the reader.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	magic, err := br.Peek(2)
	compressed := err == nil && magic[0] == 0x1f && magic[1] == 0x8b
	return &Reader{br: br, compressed: compressed}, nil
}

// Next returns the next record. io.EOF signals end of archive.
// ErrMalformedRecord signals one damaged record or gzip member; the reader
// is positioned after it and Next may be called again.
func (r *Reader) Next() (*RawRecord, error) {
	if r.compressed {
		return r.nextMember()
	}
	rec, err := parseRecord(r.br)
	if errors.Is(err, ErrMalformedRecord) {
		r.resyncPlain()
	}
	return rec, err
}

// nextMember advances to the next gzip member and parses one record from
// it. The member is always drained so a parse failure cannot stall the
// stream.
func (r *Reader) nextMember() (*RawRecord, error) {
	if r.gz == nil {
		gz, err := gzip.NewReader(r.br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		r.gz = gz
	} else {
		if err := r.gz.Reset(r.br); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			// Corrupt member header: skip forward to the next gzip magic
			// so the following call makes progress.
			r.resyncGzip()
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
	}
	r.gz.Multistream(false)

	rec, err := parseRecord(bufio.NewReader(r.gz))
	if _, derr := io.Copy(io.Discard, r.gz); derr != nil && err == nil {
		err = fmt.Errorf("%w: %v", ErrMalformedRecord, derr)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Empty trailing member.
			return nil, io.EOF
		}
		return nil, err
	}
	return rec, nil
}

// resyncGzip discards at least one byte and scans for the next gzip magic.
func (r *Reader) resyncGzip() {
	_, _ = r.br.Discard(1)
	for {
		magic, err := r.br.Peek(2)
		if err != nil {
			return
		}
		if magic[0] == 0x1f && magic[1] == 0x8b {
			return
		}
		_, _ = r.br.Discard(1)
	}
}

// resyncPlain scans forward to the next record version line.
func (r *Reader) resyncPlain() {
	for {
		peeked, err := r.br.Peek(5)
		if err != nil {
			return
		}
		if bytes.HasPrefix(peeked, []byte("WARC/")) {
			return
		}
		if _, err := r.br.ReadString('\n'); err != nil {
			return
		}
	}
}

// parseRecord reads one record: version line, header block, Content-Length
// bytes of content. Blank separator lines before the version line are
// skipped.
func parseRecord(br *bufio.Reader) (*RawRecord, error) {
	for {
		line, err := br.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if err != nil {
				return nil, io.EOF
			}
			continue
		}
		if !strings.HasPrefix(trimmed, "WARC/") {
			return nil, fmt.Errorf("%w: unexpected version line %q", ErrMalformedRecord, trimmed)
		}
		break
	}

	headers := make(map[string]string, 8)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header block", ErrMalformedRecord)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		name, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformedRecord, trimmed)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	rec := &RawRecord{Headers: headers}
	length, err := strconv.ParseInt(rec.Header("Content-Length"), 10, 64)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("%w: missing or bad Content-Length", ErrMalformedRecord)
	}

	rec.Content = make([]byte, length)
	if _, err := io.ReadFull(br, rec.Content); err != nil {
		return nil, fmt.Errorf("%w: truncated content block", ErrMalformedRecord)
	}
	rec.Type = rec.Header("WARC-Type")
	return rec, nil
}

// Close releases the decompressor, if any. The underlying source stays
// open.
func (r *Reader) Close() error {
	if r.gz != nil {
		return r.gz.Close()
	}
	return nil
}
