package warc

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Check reports whether the archive at path is readable end-to-end.
func Check(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	r, err := NewReader(f)
	if err != nil {
		return false
	}
	defer func() { _ = r.Close() }()

	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			return false
		}
	}
}

// Recompress rewrites the archive at src into a well-formed one at dst,
// carrying over every record that can still be parsed. It fails when not a
// single record survives.
func Recompress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	r, err := NewReader(in)
	if err != nil {
		_ = out.Close()
		return err
	}
	w := NewWriter(out, true)

	written := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrMalformedRecord) {
			continue
		}
		if err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to read %s: %w", src, err)
		}
		if err := w.WriteRecord(rec.Headers, rec.Content); err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to rewrite record: %w", err)
		}
		written++
	}
	if err := out.Close(); err != nil {
		return err
	}
	if written == 0 {
		return fmt.Errorf("no intact records in %s", src)
	}
	return nil
}

// ValidateOrRecompress applies the fresh-download policy: a failed check
// triggers recompression into <path>.tmp and an atomic rename over path.
// A recompression failure is returned so the caller can discard the entry.
func ValidateOrRecompress(path string, logger zerolog.Logger) error {
	logger.Info().Msgf("Checking %s", path)
	if Check(path) {
		return nil
	}
	logger.Warn().Msgf("Checking %s failed, recompressing", path)
	tmp := path + ".tmp"
	if err := Recompress(path, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
