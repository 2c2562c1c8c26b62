// Command uridist prints the per-domain distribution of a processed
// output artifact, most frequent domain first.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/gurre/crawlingest/sink"
)

var domainPattern = regexp.MustCompile(`https?://([^ /]*)`)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("uridist", flag.ExitOnError)
	var input string
	fs.StringVar(&input, "i", "", "Input file containing entries processed by the crawlingest pipeline")
	fs.StringVar(&input, "input", "", "Input file containing entries processed by the crawlingest pipeline")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if input == "" {
		return fmt.Errorf("input is required")
	}

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", input, err)
	}
	defer func() { _ = f.Close() }()

	distribution := make(map[string]int)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		row, err := sink.DecodeLine(scanner.Text())
		if err != nil {
			return err
		}
		uri, ok := row["uri"].(string)
		if !ok {
			continue
		}
		m := domainPattern.FindStringSubmatch(uri)
		if m == nil || m[1] == "" {
			return fmt.Errorf("could not extract domain from %s", uri)
		}
		distribution[m[1]]++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	type entry struct {
		domain string
		count  int
	}
	sorted := make([]entry, 0, len(distribution))
	for domain, count := range distribution {
		sorted = append(sorted, entry{domain, count})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].count > sorted[j].count })

	for _, e := range sorted {
		fmt.Printf("%s: %d\n", e.domain, e.count)
	}
	return nil
}
