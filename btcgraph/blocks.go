// Package btcgraph flattens raw per-block transaction JSON, as captured by
// the copy processor, into a transaction graph: one line per spend edge
// between an input address group and an output address, followed by the
// group membership footer.
package btcgraph

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/gurre/crawlingest/sink"
)

// Block is one raw blockchain block as the block API returns it.
type Block struct {
	BlockIndex int64 `json:"block_index"`
	Tx         []Txn `json:"tx"`
}

// Txn is one transaction. Fee is a pointer so an absent fee can be told
// apart from a zero one.
type Txn struct {
	Fee    *float64   `json:"fee"`
	Inputs []TxInput  `json:"inputs"`
	Out    []TxOutput `json:"out"`
}

// TxInput references the spent output. Addr is nil for coinbase and
// OP_RETURN inputs.
type TxInput struct {
	PrevOut PrevOut `json:"prev_out"`
}

// PrevOut is the referenced previous output.
type PrevOut struct {
	Value float64 `json:"value"`
	Addr  *string `json:"addr"`
}

// TxOutput is one transaction output.
type TxOutput struct {
	Value float64 `json:"value"`
	Addr  *string `json:"addr"`
}

// payload is the processed-output row content for a block fetch.
type payload struct {
	Blocks []Block `json:"blocks"`
}

// DecodeBlocks recovers the raw blocks from one processed output line:
// base64 → gzip → row JSON → content JSON.
func DecodeBlocks(line string) ([]Block, error) {
	row, err := sink.DecodeLine(line)
	if err != nil {
		return nil, err
	}
	content, ok := row["content"].(string)
	if !ok {
		return nil, fmt.Errorf("output row has no content field")
	}

	var p payload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("failed to parse block payload: %w", err)
	}
	return p.Blocks, nil
}

// CoinbaseAddr marks the synthetic input of a coinbase transaction.
const CoinbaseAddr = "COINBASE"

// ProcessInputs collects the spendable input addresses and their total
// value. A zero-value input with no address is the coinbase marker and
// must be the only input; addressless inputs with value (OP_RETURN) are
// skipped as unspendable.
func ProcessInputs(inputs []TxInput) ([]string, float64, error) {
	var addrs []string
	total := 0.0
	for _, in := range inputs {
		value := in.PrevOut.Value
		addr := in.PrevOut.Addr
		switch {
		case value == 0 && addr == nil:
			if len(inputs) > 1 {
				return nil, 0, fmt.Errorf("unexpected COINBASE")
			}
			return []string{CoinbaseAddr}, 0.0, nil
		case addr == nil:
			continue
		default:
			addrs = append(addrs, *addr)
			total += value
		}
	}
	return addrs, total, nil
}

// OutEntry is one spendable output.
type OutEntry struct {
	Addr  string
	Value float64
}

// ProcessOutputs collects the addressed, positive-value outputs.
func ProcessOutputs(outs []TxOutput) []OutEntry {
	results := make([]OutEntry, 0, len(outs))
	for _, o := range outs {
		if o.Value > 0 && o.Addr != nil {
			results = append(results, OutEntry{Addr: *o.Addr, Value: o.Value})
		}
	}
	return results
}
