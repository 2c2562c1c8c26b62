// Command crawlingest runs the ingestion pipeline: it streams archive,
// CSV or blockchain input through a processor pool and appends the
// compressed output artifact locally or to S3.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/gurre/crawlingest/cache"
	"github.com/gurre/crawlingest/config"
	"github.com/gurre/crawlingest/ingest"
	"github.com/gurre/crawlingest/logging"
	"github.com/gurre/crawlingest/metrics"
	"github.com/gurre/crawlingest/pipeline"
	"github.com/gurre/crawlingest/process"
	"github.com/gurre/crawlingest/sink"
	"github.com/gurre/crawlingest/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env is optional; the environment wins either way.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("crawlingest", flag.ExitOnError)

	var cfg config.Config
	fs.StringVar(&cfg.Input, "i", "", "Input file containing ingest-specific configuration")
	fs.StringVar(&cfg.Input, "input", "", "Input file containing ingest-specific configuration")
	fs.StringVar(&cfg.Output, "o", "", "Output path (e.g. s3://<region>.<bucket>/<path> or file://<path>)")
	fs.StringVar(&cfg.Output, "output", "", "Output path (e.g. s3://<region>.<bucket>/<path> or file://<path>)")
	fs.StringVar(&cfg.Processor, "p", "", "Processor to use (e.g. news)")
	fs.StringVar(&cfg.Processor, "processor", "", "Processor to use (e.g. news)")
	fs.StringVar(&cfg.Ingestor, "I", "", "Ingestor to use (e.g. warc-index)")
	fs.StringVar(&cfg.Ingestor, "ingestor", "", "Ingestor to use (e.g. warc-index)")
	fs.IntVar(&cfg.Threads, "t", pipeline.DefaultThreads, "Number of worker threads")
	fs.IntVar(&cfg.Threads, "threads", pipeline.DefaultThreads, "Number of worker threads")
	fs.IntVar(&cfg.MaxCacheLen, "cache-size", cache.DefaultMaxLen, "Archive prefetch cache size")
	fs.StringVar(&cfg.Bucket, "bucket", "commoncrawl", "Source bucket for warc-index archives")
	fs.StringVar(&cfg.Region, "region", "us-east-1", "AWS region for S3 operations")
	fs.BoolVar(&cfg.KeepLocalFiles, "keep-local-files", false, "Keep consumed archives on disk")
	fs.BoolVar(&cfg.LocalArchives, "local-archives", false, "Read archive keys from the local filesystem")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New()
	ctx := context.Background()

	// Credentials resolve once, and missing ones fail before ingestion.
	var creds storage.Credentials
	if cfg.NeedsCredentials() {
		var err error
		creds, err = storage.CredentialsFromEnv()
		if err != nil {
			return err
		}
	}

	var store storage.ObjectStore
	if cfg.LocalArchives {
		store = storage.NewFileStore("")
	} else if cfg.Ingestor == "warc-index" {
		client, err := storage.NewS3Client(ctx, creds, cfg.Region)
		if err != nil {
			return err
		}
		store = storage.NewS3Store(client, cfg.Bucket, logger)
	}

	proc, err := process.ForName(cfg.Processor)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics()

	var ingestor ingest.Ingestor
	var archiveCache *cache.Cache
	switch cfg.Ingestor {
	case "warc-index":
		index, err := os.Open(cfg.Input)
		if err != nil {
			return fmt.Errorf("failed to open index %s: %w", cfg.Input, err)
		}
		archiveCache = cache.New(store, index, m, logger, cache.Options{MaxLen: cfg.MaxCacheLen})
		ingestor = ingest.NewWarcIngestor(archiveCache, cfg.KeepLocalFiles, logger)
	case "csv-file":
		ingestor, err = ingest.NewCSVIngestor(cfg.Input, logger)
		if err != nil {
			return err
		}
	case "btc":
		spec, err := os.ReadFile(cfg.Input)
		if err != nil {
			return fmt.Errorf("failed to read BTC spec %s: %w", cfg.Input, err)
		}
		ingestor, err = ingest.NewBTCIngestor(string(spec), logger)
		if err != nil {
			return err
		}
	}

	// The upload client follows the output descriptor's region, which may
	// differ from the source bucket's.
	var sinkStore storage.ObjectStore
	if desc := cfg.OutputDescriptor(); desc.Scheme == "s3" {
		client, err := storage.NewS3Client(ctx, creds, desc.Region)
		if err != nil {
			return err
		}
		sinkStore = storage.NewS3Store(client, desc.Bucket, logger)
	}
	out, err := sink.New(cfg.OutputDescriptor(), sinkStore, logger)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Ingestor:  ingestor,
		Processor: proc,
		Sink:      out,
		Metrics:   m,
		Logger:    logger,
		Cache:     archiveCache,
	}

	logger.Info().Msgf("Starting %s ingestion of %s", cfg.Ingestor, cfg.Input)
	if err := pipeline.Run(ctx, cfg.Threads, deps); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println(m.GenerateReport())
	return nil
}
