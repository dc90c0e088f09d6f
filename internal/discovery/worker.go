// Package discovery implements DiscoveryWorker: one goroutine per monitored
// site that polls its index page, extracts newly-listed pasty IDs, and
// queues the ones not already seen for the fetch workers.
package discovery

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand"
	"runtime/debug"
	"time"

	"github.com/pastewatch/pastewatch/internal/fetcher"
	"github.com/pastewatch/pastewatch/internal/observability"
	"github.com/pastewatch/pastewatch/internal/parser"
	"github.com/pastewatch/pastewatch/internal/seenset"
	"github.com/pastewatch/pastewatch/internal/sitequeue"
	"github.com/pastewatch/pastewatch/internal/types"
)

// accessDeniedMarker is served by some sites instead of a parseable index
// page when the scraping IP has been denied access.
const accessDeniedMarker = "DOES NOT HAVE ACCESS"

// Worker polls one site's index page on a jittered interval and feeds newly
// discovered IDs into that site's Queue.
type Worker struct {
	site      *types.Site
	fetcher   fetcher.Fetcher
	extractor parser.Extractor
	seen      *seenset.SeenSet
	queue     *sitequeue.Queue
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New builds a discovery Worker for a single site.
func New(site *types.Site, f fetcher.Fetcher, extractor parser.Extractor, seen *seenset.SeenSet, queue *sitequeue.Queue, logger *slog.Logger) *Worker {
	return &Worker{
		site:      site,
		fetcher:   f,
		extractor: extractor,
		seen:      seen,
		queue:     queue,
		logger:    logger.With("component", "discovery_worker", "site", site.Name),
	}
}

// SetMetrics wires the operational counters. A nil value disables recording.
func (w *Worker) SetMetrics(m *observability.Metrics) {
	w.metrics = m
}

// Run polls until ctx is cancelled. Each iteration sleeps first, then polls;
// the initial jittered sleep staggers sites against each other across
// restarts. A failed iteration, including a panic, only puts the worker back
// to sleep until the next poll.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("discovery worker starting")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("discovery worker stopping")
			return
		case <-time.After(w.jitteredInterval()):
		}

		if err := w.safePoll(ctx); err != nil {
			w.logger.Warn("poll failed", "error", err)
			w.metrics.RecordDiscoveryError(w.site.Name)
		}
		w.metrics.RecordQueueDepth(w.site.Name, w.queue.Len())
	}
}

func (w *Worker) safePoll(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic during index poll", "panic", r, "stack", string(debug.Stack()))
			err = nil
		}
	}()
	return w.poll(ctx)
}

// poll fetches the index page once, extracts IDs, and queues the ones not
// already seen in oldest-first order (index pages list newest pastes
// first, so the extracted slice is reversed before queuing).
func (w *Worker) poll(ctx context.Context) error {
	result, err := w.fetcher.Fetch(ctx, w.site.Name, w.site.IndexURL)
	if err != nil {
		return err
	}

	ids, err := w.extractor.Extract(result.Body, w.site.IndexPattern)
	if err != nil {
		return &types.ParseError{URL: w.site.IndexURL, Strategy: w.site.ParserStrategy, Err: err}
	}

	if len(ids) == 0 && bytes.Contains(result.Body, []byte(accessDeniedMarker)) {
		w.logger.Warn("index page denied access, egress IP is likely misconfigured or blocklisted",
			"url", w.site.IndexURL)
		return nil
	}

	// IDs present in the seen-set are skipped but not added to it here;
	// only the fetch worker marks an ID seen, and only after it has
	// actually been downloaded.
	queued := 0
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if id == "" || w.seen.Seen(w.site.Name, id) {
			continue
		}

		item := sitequeue.Item{Site: w.site.Name, ID: id, URL: w.site.DownloadURL(id)}
		if !w.queue.Push(ctx, item) {
			return nil
		}
		queued++
	}

	if queued > 0 {
		w.logger.Debug("discovered new pasties", "count", queued, "total_seen", w.seen.Count(w.site.Name))
	}
	return nil
}

// jitteredInterval returns a random duration within [UpdateMin, UpdateMax].
func (w *Worker) jitteredInterval() time.Duration {
	min, max := w.site.UpdateMin, w.site.UpdateMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
