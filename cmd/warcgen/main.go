// Command warcgen writes synthetic gzipped web archives plus a matching
// index file, for local pipeline runs and benchmarks.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/gurre/crawlingest/warc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("warcgen", flag.ExitOnError)
	var outDir string
	var archives, records int
	fs.StringVar(&outDir, "o", ".", "Output directory")
	fs.IntVar(&archives, "n", 1, "Number of archives to generate")
	fs.IntVar(&records, "r", 3, "Response records per archive")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	indexPath := filepath.Join(outDir, "index.txt")
	index, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	iw := bufio.NewWriter(index)

	stamp := time.Now().Format("20060102150405")
	for i := 0; i < archives; i++ {
		name := fmt.Sprintf("%s-%05d.warc.gz", stamp, i)
		path := filepath.Join(outDir, name)
		if err := writeArchive(path, records); err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(iw, abs); err != nil {
			return err
		}
	}

	if err := iw.Flush(); err != nil {
		return err
	}
	if err := index.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %d archives and %s\n", archives, indexPath)
	return nil
}

func writeArchive(path string, records int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := warc.NewWriter(f, true)
	for i := 0; i < records; i++ {
		uri := fmt.Sprintf("http://example.com/%s", uuid.NewString())
		content := fmt.Sprintf(`{"seq":%d}`, i)
		if err := w.WriteResponse(uri, []byte(content)); err != nil {
			_ = f.Close()
			return err
		}
	}
	return f.Close()
}
