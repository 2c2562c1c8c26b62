package btcgraph

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/gurre/s3streamer"
)

// inputPattern splits the input URI into scheme and path.
var inputPattern = regexp.MustCompile(`^(s3|file)://(.*)$`)

// LineSource iterates the lines of a processed output artifact.
type LineSource interface {
	Each(ctx context.Context, fn func(line string) error) error
}

// FileSource reads lines from a local artifact.
type FileSource struct {
	Path string
}

func (s *FileSource) Each(ctx context.Context, fn func(line string) error) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// S3Source streams lines straight off the artifact object.
type S3Source struct {
	Streamer s3streamer.Streamer
	Bucket   string
	Key      string
}

func (s *S3Source) Each(ctx context.Context, fn func(line string) error) error {
	return s.Streamer.Stream(ctx, s.Bucket, s.Key, 0, func(line []byte, _ int64) error {
		return fn(string(line))
	})
}

// NewLineSource resolves an input URI into a source. s3://bucket/key reads
// remotely, file://path (or a bare path) locally.
func NewLineSource(uri string, streamer s3streamer.Streamer) (LineSource, error) {
	m := inputPattern.FindStringSubmatch(uri)
	if m == nil {
		return &FileSource{Path: uri}, nil
	}
	switch m[1] {
	case "file":
		return &FileSource{Path: m[2]}, nil
	case "s3":
		bucket, key, ok := strings.Cut(m[2], "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("bad s3 input %q: expected s3://bucket/key", uri)
		}
		if streamer == nil {
			return nil, fmt.Errorf("s3 input %q needs credentials", uri)
		}
		return &S3Source{Streamer: streamer, Bucket: bucket, Key: key}, nil
	default:
		return nil, fmt.Errorf("invalid input file format: %q", uri)
	}
}

// Flatten drives the whole raw→txn pass: decode each line's blocks, emit
// one edge per spendable output, then the footer with the address
// grouping.
func Flatten(ctx context.Context, src LineSource, out *Output) error {
	groups := NewAddressGroup()

	err := src.Each(ctx, func(line string) error {
		blocks, err := DecodeBlocks(line)
		if err != nil {
			return err
		}

		idx := 0
		for _, block := range blocks {
			for _, txn := range block.Tx {
				addrs, _, err := ProcessInputs(txn.Inputs)
				if err != nil {
					return err
				}
				// No spendable input addresses (e.g. OP_RETURN only).
				if len(addrs) == 0 {
					continue
				}
				groups.Add(addrs)
				groupAddr := groups.GroupAddr(addrs[0])
				if txn.Fee == nil {
					idx++
					continue
				}
				for _, result := range ProcessOutputs(txn.Out) {
					if err := out.Append(block.BlockIndex, idx, groupAddr, result.Addr, result.Value, *txn.Fee); err != nil {
						return err
					}
				}
				idx++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return out.Footer(groups.Write)
}
