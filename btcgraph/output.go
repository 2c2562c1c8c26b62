package btcgraph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Output writes the flattened transaction lines and the trailing footer.
type Output struct {
	f *os.File
	w *bufio.Writer
}

// NewOutput creates (truncates) the output file.
func NewOutput(path string) (*Output, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return &Output{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes one spend edge line:
// <block> <idx> <group_addr> <out_addr> <amount> <fee>.
func (o *Output) Append(block int64, idx int, groupAddr, outAddr string, amount, fee float64) error {
	_, err := fmt.Fprintf(o.w, "%d %d %s %s %s %s\n",
		block, idx, groupAddr, outAddr, formatAmount(amount), formatAmount(fee))
	return err
}

// Footer writes the FOOTER marker and hands the writer to the footer body.
func (o *Output) Footer(write func(io.Writer) error) error {
	if _, err := io.WriteString(o.w, "FOOTER\n"); err != nil {
		return err
	}
	return write(o.w)
}

// Close flushes and closes the file.
func (o *Output) Close() error {
	if err := o.w.Flush(); err != nil {
		_ = o.f.Close()
		return err
	}
	return o.f.Close()
}

// formatAmount renders satoshi values without a trailing ".0" for whole
// numbers, matching the raw block JSON.
func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
