package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Www.Revere.org/path", "www.revere.org"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, fetchTotal)
	require.NotNil(t, syncUnitsTotal)
	require.NotNil(t, httpRequestsTotal)
}

func TestObserveFetch(t *testing.T) {
	Init()
	counter := fetchTotal.WithLabelValues("logs.example.test", "ok")
	bytes := fetchBytesTotal.WithLabelValues("logs.example.test")
	before := testutil.ToFloat64(counter)
	beforeBytes := testutil.ToFloat64(bytes)

	ObserveFetch("https://logs.example.test/a.pdf", "ok", 128, 40*time.Millisecond)

	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0.0001)
	assert.InDelta(t, beforeBytes+128, testutil.ToFloat64(bytes), 0.0001)
}

func TestSyncCounters(t *testing.T) {
	Init()
	unit := syncUnitsTotal.WithLabelValues("metrics_test")
	before := testutil.ToFloat64(unit)
	beforeEntries := testutil.ToFloat64(entriesUpsertedTotal)

	ObserveSyncUnit("metrics_test")
	AddEntriesUpserted(3)
	AddEntriesUpserted(0)

	assert.InDelta(t, before+1, testutil.ToFloat64(unit), 0.0001)
	assert.InDelta(t, beforeEntries+3, testutil.ToFloat64(entriesUpsertedTotal), 0.0001)

	SetSyncInProgress(true)
	assert.InDelta(t, 1, testutil.ToFloat64(syncInProgress), 0.0001)
	SetSyncInProgress(false)
	assert.InDelta(t, 0, testutil.ToFloat64(syncInProgress), 0.0001)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.revere.org", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
