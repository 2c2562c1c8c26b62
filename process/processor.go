// Package process holds the record transformations the worker pool applies.
// Each processor is a pure function from one record to zero or more output
// rows; the registry resolves the CLI selector and fails fast on unknown
// names so no ingestion starts for a misconfigured run.
package process

import (
	"fmt"

	"github.com/gurre/crawlingest/ingest"
)

// Row is one processor-defined output mapping. The sink treats it as
// opaque JSON-serializable data.
type Row = map[string]any

// Processor transforms one record into output rows. A returned error is
// converted into a single error row by the worker; it never stops the
// pipeline.
type Processor interface {
	Name() string
	Process(rec ingest.Record) ([]Row, error)
}

// ForName resolves a processor selector.
func ForName(name string) (Processor, error) {
	switch name {
	case "copy":
		return &CopyProcessor{}, nil
	case "news":
		return &NewsProcessor{}, nil
	case "rottentomatoes":
		return &RottenTomatoesProcessor{}, nil
	default:
		return nil, fmt.Errorf("unknown processor: %s", name)
	}
}

// ErrorRow is the shape a failed record reduces to.
func ErrorRow(err error) Row {
	return Row{"error": fmt.Sprintf("Error processing record: %v", err)}
}
