// Package warc implements the archive side of the pipeline: index-line
// locators with derived timestamps, a record reader over (optionally
// gzipped) web archive files, a record writer, and validation and
// recompression of damaged archives. The rolling ingestor that stitches
// successive archives into a single record stream is ingest.WarcIngestor.
package warc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timestamp probe patterns, compiled once at package level.
//
// keyStampPattern matches crawl archive names carrying a 14-digit
// YYYYMMDDhhmmss block followed by a 5-digit sequence number.
// pathStampPattern matches YYYY/MM/DD/<n>/<ms>_<n> paths where <ms> is a
// millisecond epoch.
var (
	keyStampPattern  = regexp.MustCompile(`([0-9]{14})-[0-9]{5}`)
	pathStampPattern = regexp.MustCompile(`[0-9]{4}/[0-9]{2}/[0-9]{2}/[0-9]+/([0-9]+)_[0-9]+`)
)

// ErrBadIndexLine is returned when an index line does not parse into a
// locator. The prefetcher skips such a line with a warning. The index is not
// checked as a whole before ingestion starts, so a malformed line never
// fails the run.
var ErrBadIndexLine = errors.New("malformed index line")

// Locator identifies one archive inside remote storage. Length of -1 means
// "to the end of the object".
type Locator struct {
	Key    string // Opaque object key
	Offset int64  // Non-negative byte position
	Length int64  // Byte count, or -1
}

// ParseLocator parses one index line of 1, 2 or 3 whitespace-separated
// tokens: key | key offset | key offset length.
func ParseLocator(line string) (Locator, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	switch len(fields) {
	case 1:
		return Locator{Key: fields[0], Offset: 0, Length: -1}, nil
	case 2:
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || offset < 0 {
			return Locator{}, fmt.Errorf("%w: %q", ErrBadIndexLine, line)
		}
		return Locator{Key: fields[0], Offset: offset, Length: -1}, nil
	case 3:
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || offset < 0 {
			return Locator{}, fmt.Errorf("%w: %q", ErrBadIndexLine, line)
		}
		length, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || length <= 0 {
			return Locator{}, fmt.Errorf("%w: %q", ErrBadIndexLine, line)
		}
		return Locator{Key: fields[0], Offset: offset, Length: length}, nil
	default:
		return Locator{}, fmt.Errorf("%w: %q", ErrBadIndexLine, line)
	}
}

// Timestamp derives a wall-clock seconds value from the locator key.
// Two probes run in order: a 14-digit YYYYMMDDhhmmss block, then a
// millisecond-epoch path component. The result is 0.0 when neither
// matches, so every record extracted from the archive still carries a
// finite timestamp.
//
// The 14-digit form is interpreted in the local time zone.
func (l Locator) Timestamp() float64 {
	if m := keyStampPattern.FindStringSubmatch(l.Key); m != nil {
		t, err := time.ParseInLocation("20060102150405", m[1], time.Local)
		if err != nil {
			return 0.0
		}
		return float64(t.Unix())
	}
	if m := pathStampPattern.FindStringSubmatch(l.Key); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0.0
		}
		return float64(ms / 1000)
	}
	return 0.0
}
