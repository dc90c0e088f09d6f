package fetcher

import (
	"log/slog"
	"net/http/cookiejar"
	"sync"
)

// SessionManager keeps a cookie jar per monitored site so a site requiring a
// login or an age-gate cookie keeps its session across repeated discovery
// polls without leaking cookies to any other site.
type SessionManager struct {
	mu     sync.RWMutex
	jars   map[string]*cookiejar.Jar
	logger *slog.Logger
}

// NewSessionManager creates an empty SessionManager.
func NewSessionManager(logger *slog.Logger) *SessionManager {
	return &SessionManager{
		jars:   make(map[string]*cookiejar.Jar),
		logger: logger.With("component", "session_manager"),
	}
}

// Jar returns the cookie jar for a site, creating one on first use.
func (sm *SessionManager) Jar(site string) *cookiejar.Jar {
	sm.mu.RLock()
	jar, ok := sm.jars[site]
	sm.mu.RUnlock()
	if ok {
		return jar
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if jar, ok = sm.jars[site]; ok {
		return jar
	}
	jar, _ = cookiejar.New(nil)
	sm.jars[site] = jar
	return jar
}

// Clear drops the cookie jar for a single site.
func (sm *SessionManager) Clear(site string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.jars, site)
}

// ClearAll drops every tracked site's cookies.
func (sm *SessionManager) ClearAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.jars = make(map[string]*cookiejar.Jar)
}

// SiteCount reports how many sites currently have an open session.
func (sm *SessionManager) SiteCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.jars)
}
