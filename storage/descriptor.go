// Package storage abstracts the remote object stores the pipeline reads
// archives from and writes its output artifact to. Two backends exist:
// S3 (s3://<region>.<bucket>/<path>) and the local filesystem
// (file://<path>). Interfaces and implementations are split so tests can
// substitute an in-memory store.
package storage

import (
	"errors"
	"fmt"
	"regexp"
)

// Output URI patterns, compiled once at package level.
var (
	schemePattern = regexp.MustCompile(`^(s3|file)://`)
	s3Pattern     = regexp.MustCompile(`^s3://([a-zA-Z0-9\-]+)\.([a-zA-Z0-9\-]+)/(.*)$`)
	filePattern   = regexp.MustCompile(`^file://(.*)$`)
)

// ErrBadURI is returned for output URIs that match neither the s3 nor the
// file grammar. It is fatal and reported before any ingestion starts.
var ErrBadURI = errors.New("bad output URI")

// Descriptor is the parsed form of an output URI.
// Example:
//
//	desc, err := storage.ParseDescriptor("s3://us-west-2.results/crawl/out")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(desc.Bucket) // "results"
type Descriptor struct {
	Raw    string // Original URI
	Scheme string // "s3" or "file"
	Region string // S3 only
	Bucket string // S3 only
	Path   string // Object key (s3) or filesystem path (file)
}

// IsZero reports whether the descriptor was parsed from an empty URI, in
// which case the sink writes to stdout.
func (d Descriptor) IsZero() bool {
	return d.Raw == ""
}

// ParseDescriptor parses an output URI. An empty URI yields the zero
// Descriptor (stdout sink); anything else must match
// s3://<region>.<bucket>/<path> or file://<path>.
func ParseDescriptor(uri string) (Descriptor, error) {
	if uri == "" {
		return Descriptor{}, nil
	}
	m := schemePattern.FindStringSubmatch(uri)
	if m == nil {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrBadURI, uri)
	}
	switch m[1] {
	case "s3":
		parts := s3Pattern.FindStringSubmatch(uri)
		if parts == nil {
			return Descriptor{}, fmt.Errorf("%w: %q (expected s3://<region>.<bucket>/<path>)", ErrBadURI, uri)
		}
		return Descriptor{
			Raw:    uri,
			Scheme: "s3",
			Region: parts[1],
			Bucket: parts[2],
			Path:   parts[3],
		}, nil
	case "file":
		parts := filePattern.FindStringSubmatch(uri)
		return Descriptor{Raw: uri, Scheme: "file", Path: parts[1]}, nil
	default:
		return Descriptor{}, fmt.Errorf("%w: %q", ErrBadURI, uri)
	}
}
