// Package pipeline wires the ingestor, the worker pool and the sink
// together and owns the run lifecycle: backpressure between the
// single-threaded ingestor and the parallel processors, progress
// reporting, and orderly shutdown.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurre/crawlingest/cache"
	"github.com/gurre/crawlingest/ingest"
	"github.com/gurre/crawlingest/metrics"
	"github.com/gurre/crawlingest/process"
	"github.com/gurre/crawlingest/sink"
)

// DefaultThreads is the worker pool size when no override is given.
const DefaultThreads = 16

// Deps carries everything the driver needs, injected explicitly.
type Deps struct {
	Ingestor  ingest.Ingestor
	Processor process.Processor
	Sink      *sink.Sink
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	// Cache, when set, is stopped on fatal errors so the background
	// fetcher does not strand downloads.
	Cache *cache.Cache
}

// Run drives records from the ingestor through the worker pool into the
// sink until the ingestor reports end of stream. It returns nil on clean
// completion; any returned error is fatal to the run.
//
// Backpressure: the records channel is unbuffered, so the ingestor blocks
// as soon as all workers are busy. In-flight work is therefore capped at
// the pool size.
func Run(ctx context.Context, threads int, deps Deps) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	if threads <= 0 {
		threads = DefaultThreads
	}

	records := make(chan ingest.Record)
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(deps, records)
		}()
	}

	progressDone := make(chan struct{})
	go reportProgress(deps, progressDone)

	var runErr error
loop:
	for {
		rec, err := deps.Ingestor.Next(ctx)
		if errors.Is(err, ingest.ErrEndOfStream) {
			break
		}
		if err != nil {
			runErr = fmt.Errorf("ingestion failed: %w", err)
			break
		}
		deps.Metrics.RecordIngested()

		select {
		case records <- rec:
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		}
	}

	close(records)
	wg.Wait()
	close(progressDone)

	if runErr != nil && deps.Cache != nil {
		deps.Cache.Stop()
	}

	if err := deps.Sink.CloseAndFlush(ctx); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			deps.Logger.Error().Msgf("Error closing storage object: %v", err)
		}
	}
	return runErr
}

// worker applies the processor to each record and fans the resulting rows
// into the sink. A processor fault produces one error row; it never stops
// the pipeline.
func worker(deps Deps, records <-chan ingest.Record) {
	for rec := range records {
		rows := apply(deps, rec)
		for _, row := range rows {
			deps.Sink.Rows() <- row
		}
		deps.Metrics.RowsWritten(len(rows))
	}
}

// apply invokes the processor with panic containment.
func apply(deps Deps, rec ingest.Record) (rows []process.Row) {
	defer func() {
		if r := recover(); r != nil {
			deps.Metrics.RecordError()
			deps.Logger.Error().Msgf("Processor panic on %s: %v", rec.URI, r)
			rows = []process.Row{process.ErrorRow(fmt.Errorf("%v", r))}
		}
	}()

	rows, err := deps.Processor.Process(rec)
	if err != nil {
		deps.Metrics.RecordError()
		deps.Logger.Error().Msgf("%v", err)
		return []process.Row{process.ErrorRow(err)}
	}
	return rows
}

// reportProgress logs throughput counters every few seconds until the run
// finishes.
func reportProgress(deps Deps, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			records, rows := deps.Metrics.Snapshot()
			deps.Logger.Info().Msgf("Progress: %d records ingested, %d rows written", records, rows)
		case <-done:
			return
		}
	}
}
