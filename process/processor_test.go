package process

import (
	"errors"
	"testing"

	"github.com/gurre/crawlingest/ingest"
)

func TestForNameResolvesKnownProcessors(t *testing.T) {
	for _, name := range []string{"copy", "news", "rottentomatoes"} {
		p, err := ForName(name)
		if err != nil {
			t.Fatalf("failed to resolve %s: %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("expected name %s, got %s", name, p.Name())
		}
	}
}

func TestForNameRejectsUnknownSelector(t *testing.T) {
	if _, err := ForName("nope"); err == nil {
		t.Error("expected error for unknown selector")
	}
}

func TestCopyProcessorRoundTrip(t *testing.T) {
	p := &CopyProcessor{}
	rec := ingest.NewRecord("http://foo.com", 1610938549, []byte(`{"first":1}`))

	rows, err := p.Process(rec)
	if err != nil {
		t.Fatalf("failed to process: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["uri"] != "http://foo.com" {
		t.Errorf("unexpected uri: %v", rows[0]["uri"])
	}
	if rows[0]["ts"] != 1610938549.0 {
		t.Errorf("unexpected ts: %v", rows[0]["ts"])
	}
	if rows[0]["content"] != `{"first":1}` {
		t.Errorf("unexpected content: %v", rows[0]["content"])
	}
}

func TestErrorRowCarriesMessage(t *testing.T) {
	row := ErrorRow(errors.New("boom"))
	msg, ok := row["error"].(string)
	if !ok || msg == "" {
		t.Errorf("expected non-empty error message, got %v", row["error"])
	}
}
