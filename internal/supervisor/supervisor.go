// Package supervisor wires every component into a running PasteWatch
// instance and owns its lifecycle: Start, Wait, Stop.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pastewatch/pastewatch/internal/alert"
	"github.com/pastewatch/pastewatch/internal/archive"
	"github.com/pastewatch/pastewatch/internal/config"
	"github.com/pastewatch/pastewatch/internal/discovery"
	"github.com/pastewatch/pastewatch/internal/fetcher"
	"github.com/pastewatch/pastewatch/internal/fetchworker"
	"github.com/pastewatch/pastewatch/internal/observability"
	"github.com/pastewatch/pastewatch/internal/parser"
	"github.com/pastewatch/pastewatch/internal/persistence"
	"github.com/pastewatch/pastewatch/internal/proxypool"
	"github.com/pastewatch/pastewatch/internal/seenset"
	"github.com/pastewatch/pastewatch/internal/signature"
	"github.com/pastewatch/pastewatch/internal/sitequeue"
	"github.com/pastewatch/pastewatch/internal/types"
)

// State mirrors the lifecycle states of a supervised run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type siteUnit struct {
	name       string
	discoverer *discovery.Worker
	pool       *fetchworker.Pool
	queue      *sitequeue.Queue
}

// Supervisor owns every long-running component and the context that bounds
// their lifetimes.
type Supervisor struct {
	cfg    *config.Config
	logger *slog.Logger

	httpFetcher *fetcher.HTTPFetcher
	browser     *fetcher.BrowserFetcher
	matcher     *signature.Matcher
	hitsWriter  *archive.Writer
	allWriter   *archive.Writer
	mongo       *persistence.MongoSink
	redisQueue  *persistence.Queue
	persist     *persistence.Worker
	alerter     *alert.Alerter
	metrics     *observability.Metrics
	seen        *seenset.SeenSet

	units []siteUnit

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Supervisor from cfg but starts nothing yet.
func New(cfg *config.Config, logger *slog.Logger) (*Supervisor, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		cfg:    cfg,
		logger: logger,
		seen:   seenset.New(),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Metrics.Enabled {
		s.metrics = observability.New(logger)
	}

	proxies, err := proxypool.NewPool(cfg.Proxy.File, cfg.Proxy.Random, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build proxy pool: %w", err)
	}
	proxies.SetEvictionHook(s.metrics.RecordProxyEviction)
	agents, err := proxypool.NewUserAgentPool(cfg.UserAgent.File, cfg.UserAgent.Random, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build user-agent pool: %w", err)
	}
	sessions := fetcher.NewSessionManager(logger)

	httpFetcher, err := fetcher.New(cfg, proxies, agents, sessions, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build http fetcher: %w", err)
	}
	s.httpFetcher = httpFetcher
	s.httpFetcher.SetMetrics(s.metrics)

	if needsBrowser(cfg) {
		browserFetcher, err := fetcher.NewBrowserFetcher(logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("build browser fetcher: %w", err)
		}
		s.browser = browserFetcher
	}

	matcher, err := signature.Compile(cfg.Search)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("compile signature catalog: %w", err)
	}
	s.matcher = matcher
	logger.Info("signature catalog compiled", "rules", matcher.Len())

	if cfg.Archive.Save {
		s.hitsWriter = archive.NewWriter(cfg.Archive.Dir, cfg.Archive.Compress, logger)
	}
	if cfg.Archive.SaveAll {
		s.allWriter = archive.NewWriter(cfg.Archive.DirAll, cfg.Archive.Compress, logger)
	}

	if cfg.Mongo.Enable {
		mongo, err := persistence.NewMongoSink(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		s.mongo = mongo
	}
	if cfg.Redis.Queue {
		q, err := persistence.NewQueue(cfg.Redis.Server, cfg.Redis.Port, cfg.Redis.Database, "pastes", logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redisQueue = q
	}
	if s.mongo != nil || s.redisQueue != nil {
		s.persist = persistence.NewWorker(s.mongo, s.redisQueue, logger)
		s.persist.SetMetrics(s.metrics)
	}

	if cfg.Email.Alert {
		s.alerter = alert.New(cfg.Email.Server, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password, cfg.Email.From, cfg.Email.To, cfg.Email.Subject, logger)
	}

	for name, siteCfg := range cfg.Sites {
		if !siteCfg.Enable {
			continue
		}
		unit, err := s.buildSiteUnit(name, siteCfg, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("build site %q: %w", name, err)
		}
		s.units = append(s.units, unit)
	}

	return s, nil
}

func needsBrowser(cfg *config.Config) bool {
	for _, site := range cfg.Sites {
		if site.Enable && site.ParserStrategy == "browser" {
			return true
		}
	}
	return false
}

func (s *Supervisor) buildSiteUnit(name string, siteCfg config.SiteConfig, logger *slog.Logger) (siteUnit, error) {
	site := &types.Site{
		Name:         name,
		Enabled:      siteCfg.Enable,
		IndexURL:     siteCfg.ArchiveURL,
		IndexPattern: siteCfg.ArchiveRegex,
		// The config carries the placeholder as a literal "{id}"; the
		// runtime template is Sprintf-style.
		DownloadURLTemplate: strings.ReplaceAll(siteCfg.DownloadURL, "{id}", "%s"),
		ParserStrategy:      siteCfg.ParserStrategy,
		UpdateMin:           time.Duration(siteCfg.UpdateMin) * time.Second,
		UpdateMax:           time.Duration(siteCfg.UpdateMax) * time.Second,
	}

	extractor, err := parser.Resolve(siteCfg.ParserStrategy)
	if err != nil {
		return siteUnit{}, err
	}

	var indexFetcher fetcher.Fetcher = s.httpFetcher
	if siteCfg.ParserStrategy == "browser" && s.browser != nil {
		indexFetcher = s.browser
	}

	queue := sitequeue.New()
	discoverer := discovery.New(site, indexFetcher, extractor, s.seen, queue, logger)
	discoverer.SetMetrics(s.metrics)
	pool := fetchworker.New(name, queue, s.httpFetcher, s.matcher, s.seen, s.hitsWriter, s.allWriter, s.persist, s.alerter, logger)
	pool.SetMetrics(s.metrics)

	return siteUnit{name: name, discoverer: discoverer, pool: pool, queue: queue}, nil
}

// Start launches every component's goroutines and returns immediately.
func (s *Supervisor) Start() error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("supervisor is in state %s, cannot start", State(s.state.Load()))
	}
	if len(s.units) == 0 {
		return fmt.Errorf("no enabled sites configured")
	}

	s.logger.Info("supervisor starting", "sites", len(s.units), "threads_per_site", s.cfg.Threads)

	if s.persist != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.persist.Run(s.ctx)
		}()
	}

	if s.metrics != nil {
		s.metrics.Serve(s.cfg.Metrics.Port, s.cfg.Metrics.Path)
	}

	for _, unit := range s.units {
		unit.pool.Start(s.ctx, s.cfg.Threads)

		s.wg.Add(1)
		go func(u siteUnit) {
			defer s.wg.Done()
			u.discoverer.Run(s.ctx)
		}(unit)
	}

	return nil
}

// Wait blocks until Stop is called and every goroutine has exited.
func (s *Supervisor) Wait() {
	<-s.ctx.Done()

	for _, unit := range s.units {
		unit.pool.Wait()
		unit.queue.Close()
	}
	if s.persist != nil {
		s.persist.Close()
	}

	s.wg.Wait()
	s.state.Store(int32(StateStopped))

	if err := s.httpFetcher.Close(); err != nil {
		s.logger.Error("http fetcher close error", "error", err)
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Error("browser fetcher close error", "error", err)
		}
	}
	if s.mongo != nil {
		if err := s.mongo.Close(); err != nil {
			s.logger.Error("mongo close error", "error", err)
		}
	}
	if s.redisQueue != nil {
		if err := s.redisQueue.Close(); err != nil {
			s.logger.Error("redis close error", "error", err)
		}
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(context.Background()); err != nil {
			s.logger.Error("metrics shutdown error", "error", err)
		}
	}

	s.logger.Info("supervisor stopped")
}

// Stop signals every component to shut down. Safe to call once; subsequent
// calls are no-ops.
func (s *Supervisor) Stop() {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	s.logger.Info("supervisor stopping...")
	s.cancel()
}

// GetState returns the supervisor's current lifecycle state.
func (s *Supervisor) GetState() State {
	return State(s.state.Load())
}
