package archive

import (
	"compress/gzip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWritePlainLayout(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, false, discardLogger())

	at := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	path, err := w.Write("pastebin", "abc123", []byte("secret stuff"), at)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := filepath.Join(root, "pastebin", "2026", "03", "05", "abc123")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "secret stuff" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestWriteCompressed(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, true, discardLogger())

	at := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	path, err := w.Write("ghostbin", "xyz789", []byte("payload"), at)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Ext(path) != ".gz" {
		t.Fatalf("expected .gz extension, got %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	data, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("read gzip: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestWriteSanitizesTraversalID(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, false, discardLogger())

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	path, err := w.Write("evilsite", "../../etc/passwd", []byte("x"), at)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, "evilsite", "2026", "01", "01") {
		t.Fatalf("id escaped its day directory: %q", path)
	}
}

func TestWriteRequiresRoot(t *testing.T) {
	w := NewWriter("", false, discardLogger())
	if _, err := w.Write("site", "id", []byte("x"), time.Now()); err == nil {
		t.Fatal("expected error with no root configured")
	}
}

