// Package fetchworker implements FetchWorkerPool: the goroutines that drain
// a site's pending-fetch queue, download each pasty body, run it through the
// signature catalog, archive and persist matches, and raise alerts.
package fetchworker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pastewatch/pastewatch/internal/alert"
	"github.com/pastewatch/pastewatch/internal/archive"
	"github.com/pastewatch/pastewatch/internal/fetcher"
	"github.com/pastewatch/pastewatch/internal/observability"
	"github.com/pastewatch/pastewatch/internal/persistence"
	"github.com/pastewatch/pastewatch/internal/seenset"
	"github.com/pastewatch/pastewatch/internal/signature"
	"github.com/pastewatch/pastewatch/internal/sitequeue"
	"github.com/pastewatch/pastewatch/internal/types"
)

// Pool runs a fixed number of worker goroutines against a single site's
// Queue. Every worker shares the same Fetcher, Matcher, Writers, seen-set,
// persistence Worker and Alerter; those collaborators are each safe for
// concurrent use.
type Pool struct {
	site       string
	queue      *sitequeue.Queue
	fetcher    fetcher.Fetcher
	matcher    *signature.Matcher
	seen       *seenset.SeenSet
	hitsWriter *archive.Writer // archive.dir: matched pasties only
	allWriter  *archive.Writer // archive.dir-all: every fetched pasty
	persist    *persistence.Worker
	alerter    *alert.Alerter
	metrics    *observability.Metrics
	logger     *slog.Logger

	wg sync.WaitGroup
}

// New builds a fetch worker Pool for one site. hitsWriter, allWriter,
// persist, and alerter may each be nil to disable that stage.
func New(site string, queue *sitequeue.Queue, f fetcher.Fetcher, matcher *signature.Matcher, seen *seenset.SeenSet, hitsWriter, allWriter *archive.Writer, persist *persistence.Worker, alerter *alert.Alerter, logger *slog.Logger) *Pool {
	return &Pool{
		site:       site,
		queue:      queue,
		fetcher:    f,
		matcher:    matcher,
		seen:       seen,
		hitsWriter: hitsWriter,
		allWriter:  allWriter,
		persist:    persist,
		alerter:    alerter,
		logger:     logger.With("component", "fetch_worker_pool", "site", site),
	}
}

// SetMetrics wires the operational counters. A nil value disables recording.
func (p *Pool) SetMetrics(m *observability.Metrics) {
	p.metrics = m
}

// Start launches n worker goroutines and returns immediately. Call Wait to
// block until ctx is cancelled and every worker has exited.
func (p *Pool) Start(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Wait blocks until every worker goroutine started by Start has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.logger.With("worker", id)
	log.Info("fetch worker starting")

	for {
		item, ok := p.queue.Pop(ctx)
		if !ok {
			log.Info("fetch worker stopping")
			return
		}
		p.safeProcess(ctx, item, log)
		p.metrics.RecordQueueDepth(p.site, p.queue.Len())
	}
}

// safeProcess confines a panic to the one pasty that caused it; the worker
// logs the stack and moves on to the next item.
func (p *Pool) safeProcess(ctx context.Context, item sitequeue.Item, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing pasty", "id", item.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	p.process(ctx, item, log)
}

// process handles one dequeued pasty in order: re-check the seen-set (a
// concurrent worker may already have handled this ID), fetch, hash, mark
// seen, archive-all unconditionally, match, and on a non-empty match set
// persist + archive to the hits tree + alert. Any error is logged and the
// worker moves on to the next item; it never dies on one bad pasty.
func (p *Pool) process(ctx context.Context, item sitequeue.Item, log *slog.Logger) {
	if p.seen != nil && p.seen.Seen(item.Site, item.ID) {
		log.Debug("dropping already-seen pasty", "id", item.ID)
		return
	}

	result, err := p.fetcher.Fetch(ctx, item.Site, item.URL)
	if err != nil {
		log.Warn("fetch failed", "id", item.ID, "error", err)
		p.metrics.RecordFetchFailed(item.Site)
		return
	}

	pasty := types.NewPasty(item.Site, item.ID, item.URL)
	pasty.Body = result.Body
	pasty.FetchedAt = time.Now()

	if p.seen != nil {
		p.seen.Mark(item.Site, item.ID)
	}

	if p.allWriter != nil {
		path, err := p.allWriter.Write(pasty.Site, pasty.ID, pasty.Body, pasty.FetchedAt)
		if err != nil {
			log.Error("archive-all write failed", "id", item.ID, "error", err)
		} else if p.persist != nil {
			p.persist.SubmitPath(path)
		}
	}

	pasty.Matches = p.matcher.Evaluate(pasty.Body)
	if !pasty.HasMatches() {
		return
	}
	pasty.Public = types.AnyPublic(pasty.Matches)
	p.metrics.RecordMatch()

	log.Info("signature match", "id", item.ID, "matches", types.Describe(pasty.Matches), "public", pasty.Public)

	if p.hitsWriter != nil {
		path, err := p.hitsWriter.Write(pasty.Site, pasty.ID, pasty.Body, pasty.FetchedAt)
		if err != nil {
			log.Error("archive write failed", "id", item.ID, "error", err)
		} else {
			pasty.LocalPath = path
			if p.persist != nil {
				p.persist.SubmitPath(path)
			}
		}
	}

	if p.persist != nil {
		p.persist.SubmitRecord(types.NewDurableRecord(pasty))
	}

	if p.alerter != nil {
		if err := p.alerter.Send(pasty); err != nil {
			log.Error("alert send failed", "id", item.ID, "error", err)
		}
	}
}
