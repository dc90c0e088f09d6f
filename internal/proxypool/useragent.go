package proxypool

import (
	"bufio"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync/atomic"
)

const defaultUserAgent = "PasteWatch/1.0 (+https://github.com/pastewatch/pastewatch)"

// UserAgentPool rotates User-Agent header values across fetches.
type UserAgentPool struct {
	agents []string
	random bool
	index  atomic.Int64
}

// NewUserAgentPool builds a UserAgentPool from a newline-delimited file. An
// empty path yields a pool that always returns defaultUserAgent.
func NewUserAgentPool(path string, random bool, logger *slog.Logger) (*UserAgentPool, error) {
	p := &UserAgentPool{random: random}
	if path == "" {
		return p, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open user-agent file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p.agents = append(p.agents, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read user-agent file: %w", err)
	}

	logger.Info("user-agent pool loaded", "count", len(p.agents), "random", random)
	return p, nil
}

// Next returns the next User-Agent string in rotation.
func (p *UserAgentPool) Next() string {
	if len(p.agents) == 0 {
		return defaultUserAgent
	}
	if p.random {
		return p.agents[rand.Intn(len(p.agents))]
	}
	idx := int(p.index.Add(1)-1) % len(p.agents)
	return p.agents[idx]
}

// Count returns the number of loaded User-Agent strings.
func (p *UserAgentPool) Count() int {
	return len(p.agents)
}
