// Command raw2txn flattens raw BTC block captures (the copy processor's
// output) into a transaction graph file with an address-grouping footer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gurre/s3streamer"
	"github.com/joho/godotenv"

	"github.com/gurre/crawlingest/btcgraph"
	"github.com/gurre/crawlingest/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("raw2txn", flag.ExitOnError)
	var input, output, region string
	fs.StringVar(&input, "i", "", "Input path (s3://<bucket>/<path> or file://<path>) containing a compressed, b64 encoded BTC block per line")
	fs.StringVar(&input, "input", "", "Input path (s3://<bucket>/<path> or file://<path>) containing a compressed, b64 encoded BTC block per line")
	fs.StringVar(&output, "o", "", "Output path for the flattened transaction graph")
	fs.StringVar(&output, "output", "", "Output path for the flattened transaction graph")
	fs.StringVar(&region, "region", "us-east-1", "AWS region for s3 input")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if input == "" {
		return fmt.Errorf("input is required")
	}
	if output == "" {
		return fmt.Errorf("output is required")
	}

	ctx := context.Background()

	var streamer s3streamer.Streamer
	if strings.HasPrefix(input, "s3://") {
		creds, err := storage.CredentialsFromEnv()
		if err != nil {
			return err
		}
		client, err := storage.NewS3Client(ctx, creds, region)
		if err != nil {
			return err
		}
		streamer = s3streamer.NewS3Streamer(client)
	}

	src, err := btcgraph.NewLineSource(input, streamer)
	if err != nil {
		return err
	}

	out, err := btcgraph.NewOutput(strings.TrimPrefix(output, "file://"))
	if err != nil {
		return err
	}

	if err := btcgraph.Flatten(ctx, src, out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
