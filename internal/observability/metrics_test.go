package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCountersIncrement(t *testing.T) {
	m := New(discardLogger())

	m.FetchesTotal.Inc()
	m.FetchesFailed.WithLabelValues("pastebin").Inc()
	m.RetriesTotal.WithLabelValues("server").Add(3)
	m.MatchesTotal.Inc()
	m.ProxyEvictions.Inc()
	m.QueueDepth.WithLabelValues("pastebin").Set(12)

	if got := testutil.ToFloat64(m.FetchesTotal); got != 1 {
		t.Fatalf("FetchesTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FetchesFailed.WithLabelValues("pastebin")); got != 1 {
		t.Fatalf("FetchesFailed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RetriesTotal.WithLabelValues("server")); got != 3 {
		t.Fatalf("RetriesTotal = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("pastebin")); got != 12 {
		t.Fatalf("QueueDepth = %v, want 12", got)
	}
}

func TestRecordMethodsIncrement(t *testing.T) {
	m := New(discardLogger())

	m.RecordFetch()
	m.RecordFetchFailed("pastebin")
	m.RecordRetry("paste")
	m.RecordMatch()
	m.RecordPersistWrite("ok")
	m.RecordProxyEviction()
	m.RecordQueueDepth("pastebin", 7)
	m.RecordDiscoveryError("pastebin")

	if got := testutil.ToFloat64(m.MatchesTotal); got != 1 {
		t.Fatalf("MatchesTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PersistWrites.WithLabelValues("ok")); got != 1 {
		t.Fatalf("PersistWrites = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("pastebin")); got != 7 {
		t.Fatalf("QueueDepth = %v, want 7", got)
	}
}

func TestRecordMethodsAreNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordFetch()
	m.RecordFetchFailed("pastebin")
	m.RecordRetry("server")
	m.RecordMatch()
	m.RecordPersistWrite("error")
	m.RecordProxyEviction()
	m.RecordQueueDepth("pastebin", 3)
	m.RecordDiscoveryError("pastebin")
}

func TestShutdownWithoutServeIsNoop(t *testing.T) {
	m := New(discardLogger())
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
