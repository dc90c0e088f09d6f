package supervisor

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pastewatch/pastewatch/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Threads = 2
	cfg.Sites = map[string]config.SiteConfig{
		"pastebin": {
			Enable:         true,
			DownloadURL:    "https://pastebin.example/raw/{id}",
			ArchiveURL:     "https://pastebin.example/archive",
			ArchiveRegex:   `(\w+)`,
			ParserStrategy: "regex",
			UpdateMin:      1,
			UpdateMax:      2,
		},
		"disabled-site": {
			Enable: false,
		},
	}
	return cfg
}

func TestNewBuildsOneUnitPerEnabledSite(t *testing.T) {
	sup, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(sup.units) != 1 {
		t.Fatalf("expected 1 enabled-site unit, got %d", len(sup.units))
	}
	if sup.units[0].name != "pastebin" {
		t.Fatalf("unexpected unit name %q", sup.units[0].name)
	}
}

func TestNewFailsWithNoSites(t *testing.T) {
	cfg := testConfig()
	cfg.Sites = nil
	sup, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sup.Start(); err == nil {
		t.Fatal("expected Start to fail with no enabled sites")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	sup, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := sup.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sup.GetState() != StateRunning {
		t.Fatalf("expected running, got %s", sup.GetState())
	}

	if err := sup.Start(); err == nil {
		t.Fatal("expected second Start to fail")
	}

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	sup.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Stop")
	}

	if sup.GetState() != StateStopped {
		t.Fatalf("expected stopped, got %s", sup.GetState())
	}
}
