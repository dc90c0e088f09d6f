// Package proxypool implements the rotating resource pools (outbound proxies
// and User-Agent strings) shared by every fetch worker.
package proxypool

import (
	"bufio"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// failureThreshold is the number of consecutive failures that evicts a proxy
// from rotation until the next ResetFailures call re-admits it.
const failureThreshold = 2

// Pool rotates outbound proxy URLs, evicting one after two consecutive
// failures and re-admitting it only when explicitly reset.
type Pool struct {
	mu      sync.RWMutex
	entries []*entry
	random  bool
	index   atomic.Int64
	logger  *slog.Logger
	onEvict func()
}

type entry struct {
	url      *url.URL
	failures int
	evicted  bool
}

// NewPool builds a Pool from a newline-delimited file of proxy URLs. An empty
// path yields an always-empty pool (direct connections only).
func NewPool(path string, random bool, logger *slog.Logger) (*Pool, error) {
	p := &Pool{random: random, logger: logger.With("component", "proxy_pool")}
	if path == "" {
		return p, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil {
			logger.Warn("skipping invalid proxy URL", "line", line, "error", err)
			continue
		}
		p.entries = append(p.entries, &entry{url: u})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}

	logger.Info("proxy pool loaded", "count", len(p.entries), "random", random)
	return p, nil
}

// SetEvictionHook registers fn to be called once per proxy eviction. Call
// before the pool is shared with any fetcher.
func (p *Pool) SetEvictionHook(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEvict = fn
}

// ProxyFunc returns an http.Transport-compatible proxy selector.
func (p *Pool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		return p.Next(), nil
	}
}

// Next returns the next proxy in rotation, or nil for a direct connection
// when the pool is empty or every entry is evicted.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	var live []*entry
	for _, e := range p.entries {
		if !e.evicted {
			live = append(live, e)
		}
	}
	if len(live) == 0 {
		return nil
	}

	if p.random {
		return live[rand.Intn(len(live))].url
	}
	idx := int(p.index.Add(1)-1) % len(live)
	return live[idx].url
}

// MarkFailed records a failed use of proxyURL, evicting it once it has
// accumulated failureThreshold consecutive failures.
func (p *Pool) MarkFailed(proxyURL *url.URL) {
	if proxyURL == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.url.String() == proxyURL.String() {
			e.failures++
			if e.failures >= failureThreshold && !e.evicted {
				e.evicted = true
				p.logger.Warn("proxy evicted after repeated failures",
					"proxy", proxyURL.Host, "failures", e.failures)
				if p.onEvict != nil {
					p.onEvict()
				}
			}
			return
		}
	}
}

// MarkSucceeded resets the failure count for a proxy that served a request.
func (p *Pool) MarkSucceeded(proxyURL *url.URL) {
	if proxyURL == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.url.String() == proxyURL.String() {
			e.failures = 0
			return
		}
	}
}

// ResetEvictions re-admits every evicted proxy back into rotation.
func (p *Pool) ResetEvictions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		e.evicted = false
		e.failures = 0
	}
}

// Count returns the total number of configured proxies.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// LiveCount returns the number of proxies currently in rotation.
func (p *Pool) LiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, e := range p.entries {
		if !e.evicted {
			n++
		}
	}
	return n
}
