// Package config holds the run configuration and its validation. All
// configuration faults are reported here, before any ingestion starts.
package config

import (
	"fmt"

	"github.com/gurre/crawlingest/storage"
)

// Config holds all parameters of one ingestion run.
type Config struct {
	Input          string // Ingestor-specific input (index file, CSV, BTC spec)
	Output         string // Output URI (file:// or s3://); empty means stdout
	Processor      string // copy | news | rottentomatoes
	Ingestor       string // warc-index | csv-file | btc
	Threads        int    // Worker pool size
	MaxCacheLen    int    // Prefetch cache bound
	Bucket         string // Source bucket for warc-index archives
	Region         string // AWS region for s3 operations
	KeepLocalFiles bool   // Keep consumed archives on disk
	LocalArchives  bool   // Read archive keys from the local filesystem

	// Internal fields
	outputDesc storage.Descriptor
}

// OutputDescriptor returns the descriptor parsed during Validate.
func (c *Config) OutputDescriptor() storage.Descriptor {
	return c.outputDesc
}

// Validate ensures all required fields are present and have valid values.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}

	switch c.Processor {
	case "copy", "news", "rottentomatoes":
	case "":
		return fmt.Errorf("processor is required")
	default:
		return fmt.Errorf("unknown processor: %s", c.Processor)
	}

	switch c.Ingestor {
	case "warc-index", "csv-file", "btc":
	case "":
		return fmt.Errorf("ingestor is required")
	default:
		return fmt.Errorf("unknown ingestor: %s", c.Ingestor)
	}

	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1")
	}

	if c.MaxCacheLen < 1 {
		return fmt.Errorf("cache length must be at least 1")
	}

	if c.Ingestor == "warc-index" && !c.LocalArchives && c.Bucket == "" {
		return fmt.Errorf("bucket is required for remote archive reads")
	}

	desc, err := storage.ParseDescriptor(c.Output)
	if err != nil {
		return err
	}
	c.outputDesc = desc

	return nil
}

// NeedsCredentials reports whether any s3:// endpoint is in play.
func (c *Config) NeedsCredentials() bool {
	if c.outputDesc.Scheme == "s3" {
		return true
	}
	return c.Ingestor == "warc-index" && !c.LocalArchives
}
