package warc

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// Writer emits well-formed records, one gzip member per record when
// compression is on. It backs the recompressor and the test-data
// generator.
type Writer struct {
	w        io.Writer
	compress bool
}

// NewWriter wraps w. With compress set, each record becomes its own gzip
// member so damaged members can later be skipped independently.
func NewWriter(w io.Writer, compress bool) *Writer {
	return &Writer{w: w, compress: compress}
}

// WriteRecord writes one record with the given headers. Content-Length is
// always set from the content; WARC-Record-ID is generated when absent.
func (w *Writer) WriteRecord(headers map[string]string, content []byte) error {
	dst := w.w
	var gz *gzip.Writer
	if w.compress {
		gz = gzip.NewWriter(w.w)
		dst = gz
	}

	if err := writeRecordTo(dst, headers, content); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to close gzip member: %w", err)
		}
	}
	return nil
}

// WriteResponse is a convenience for response-type records.
func (w *Writer) WriteResponse(targetURI string, content []byte) error {
	return w.WriteRecord(map[string]string{
		"WARC-Type":       "response",
		"WARC-Target-URI": targetURI,
	}, content)
}

func writeRecordTo(dst io.Writer, headers map[string]string, content []byte) error {
	out := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		out[k] = v
	}
	if _, ok := out["WARC-Record-ID"]; !ok {
		out["WARC-Record-ID"] = fmt.Sprintf("<urn:uuid:%s>", uuid.NewString())
	}
	out["Content-Length"] = fmt.Sprintf("%d", len(content))

	if _, err := io.WriteString(dst, "WARC/1.0\r\n"); err != nil {
		return fmt.Errorf("failed to write version line: %w", err)
	}

	// Headers are written in sorted name order.
	names := make([]string, 0, len(out))
	for k := range out {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(dst, "%s: %s\r\n", name, out[name]); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	if _, err := io.WriteString(dst, "\r\n"); err != nil {
		return err
	}
	if _, err := dst.Write(content); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	if _, err := io.WriteString(dst, "\r\n\r\n"); err != nil {
		return err
	}
	return nil
}
