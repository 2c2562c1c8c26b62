package ingest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBTCIngestorRejectsBadSpecs(t *testing.T) {
	testCases := []struct {
		name string
		spec string
	}{
		{"missing parts", "http://host"},
		{"non-integer begin", "http://host,a,3"},
		{"non-integer end", "http://host,1,b"},
		{"inverted range", "http://host,5,3"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBTCIngestor(tc.spec, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

func TestBTCIngestorFetchesRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		block := strings.TrimPrefix(r.URL.Path, "/")
		fmt.Fprintf(w, `{"block":%s}`, block)
	}))
	defer srv.Close()

	in, err := NewBTCIngestor(fmt.Sprintf("%s,10,12", srv.URL), zerolog.Nop())
	require.NoError(t, err)

	records := drain(t, in)
	require.Len(t, records, 3)
	assert.Equal(t, srv.URL+"/10", records[0].URI)
	assert.Equal(t, `{"block":10}`, records[0].Content)
	assert.Equal(t, srv.URL+"/12", records[2].URI)
	assert.NotZero(t, records[0].TS)
}

func TestBTCIngestorRetriesTransientFaults(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"block":0}`)
	}))
	defer srv.Close()

	in, err := NewBTCIngestor(fmt.Sprintf("%s,0,0", srv.URL), zerolog.Nop())
	require.NoError(t, err)

	records := drain(t, in)
	require.Len(t, records, 1)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestBTCIngestorSkipsBlockAfterRetryExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/1") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	in, err := NewBTCIngestor(fmt.Sprintf("%s,0,2", srv.URL), zerolog.Nop())
	require.NoError(t, err)

	// Block 1 keeps failing; it is skipped, the stream does not end.
	records := drain(t, in)
	require.Len(t, records, 2)
	assert.Equal(t, srv.URL+"/0", records[0].URI)
	assert.Equal(t, srv.URL+"/2", records[1].URI)
}
