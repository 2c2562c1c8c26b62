package warc

import (
	"errors"
	"testing"
	"time"
)

func TestParseLocatorSingleToken(t *testing.T) {
	loc, err := ParseLocator("crawl-data/CC-MAIN/file.warc.gz\n")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if loc.Key != "crawl-data/CC-MAIN/file.warc.gz" {
		t.Errorf("unexpected key: %q", loc.Key)
	}
	if loc.Offset != 0 || loc.Length != -1 {
		t.Errorf("expected offset 0 and open length, got %d %d", loc.Offset, loc.Length)
	}
}

func TestParseLocatorOffsetOnly(t *testing.T) {
	loc, err := ParseLocator("key 1024")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if loc.Offset != 1024 || loc.Length != -1 {
		t.Errorf("expected offset 1024 and open length, got %d %d", loc.Offset, loc.Length)
	}
}

func TestParseLocatorOffsetAndLength(t *testing.T) {
	loc, err := ParseLocator("key 1024 512")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if loc.Offset != 1024 || loc.Length != 512 {
		t.Errorf("expected offset 1024 length 512, got %d %d", loc.Offset, loc.Length)
	}
}

func TestParseLocatorRejectsBadLines(t *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"too many tokens", "key 1 2 3"},
		{"non-integer offset", "key abc"},
		{"negative offset", "key -1"},
		{"zero length", "key 0 0"},
		{"negative length", "key 0 -5"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseLocator(tc.line); !errors.Is(err, ErrBadIndexLine) {
				t.Errorf("expected ErrBadIndexLine for %q, got %v", tc.line, err)
			}
		})
	}
}

func TestTimestampFromKeyStamp(t *testing.T) {
	loc := Locator{Key: "crawl-data/CC-MAIN-2021-04/segments/1610703514121.8/warc/CC-MAIN-20210118030549-20210118060549-00000.warc.gz"}
	want := time.Date(2021, 1, 18, 3, 5, 49, 0, time.Local).Unix()
	if got := loc.Timestamp(); got != float64(want) {
		t.Errorf("expected %d, got %f", want, got)
	}
}

func TestTimestampFromMillisPath(t *testing.T) {
	loc := Locator{Key: "2021/01/18/1/1610938549000_42"}
	if got := loc.Timestamp(); got != 1610938549.0 {
		t.Errorf("expected 1610938549, got %f", got)
	}
}

func TestTimestampNoMatchIsZero(t *testing.T) {
	loc := Locator{Key: "some/opaque/key"}
	if got := loc.Timestamp(); got != 0.0 {
		t.Errorf("expected 0.0, got %f", got)
	}
}

func TestTimestampRoundTripsLocalTime(t *testing.T) {
	// The 14-digit form must decode to the epoch seconds of that
	// wall-clock moment in local time.
	stamps := []string{"20150101000000", "20201231235959", "20210615120000"}
	for _, stamp := range stamps {
		loc := Locator{Key: stamp + "-00001"}
		parsed, err := time.ParseInLocation("20060102150405", stamp, time.Local)
		if err != nil {
			t.Fatalf("bad test stamp %q: %v", stamp, err)
		}
		if got := loc.Timestamp(); got != float64(parsed.Unix()) {
			t.Errorf("stamp %s: expected %d, got %f", stamp, parsed.Unix(), got)
		}
	}
}
