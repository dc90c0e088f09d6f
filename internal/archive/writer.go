// Package archive writes pasty bodies to a date-partitioned directory tree
// on local or mounted storage.
package archive

import (
	"compress/gzip"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Writer lays pasty bodies out under <root>/<site>/YYYY/MM/DD/<id>[.gz]. A
// Writer only knows about one root; the save (hits tree) and save-all
// (universal tree) policy decision lives one level up, in fetchworker, which
// holds one Writer per configured root and calls whichever ones its policy
// calls for.
type Writer struct {
	root     string
	compress bool
	logger   *slog.Logger
}

// NewWriter builds a Writer rooted at dir. compress gzips each body before
// writing. dir must be non-empty; callers only construct a Writer for a root
// that was actually configured.
func NewWriter(dir string, compress bool, logger *slog.Logger) *Writer {
	return &Writer{
		root:     dir,
		compress: compress,
		logger:   logger.With("component", "archive_writer", "root", dir),
	}
}

// Write archives body under site/id, returning the path it was written to.
// The parent directories are created idempotently with MkdirAll, so
// concurrent fetch workers writing to the same day's directory never race;
// MkdirAll treats EEXIST on the final element as success.
func (w *Writer) Write(site, id string, body []byte, at time.Time) (string, error) {
	if w.root == "" {
		return "", fmt.Errorf("archive: no root directory configured")
	}

	safeID := sanitizeID(id)
	dir := filepath.Join(w.root, site, at.Format("2006"), at.Format("01"), at.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	name := safeID
	if w.compress {
		name += ".gz"
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	if w.compress {
		gw := gzip.NewWriter(f)
		if _, err := gw.Write(body); err != nil {
			return "", fmt.Errorf("write gzip archive: %w", err)
		}
		if err := gw.Close(); err != nil {
			return "", fmt.Errorf("close gzip archive: %w", err)
		}
	} else if _, err := f.Write(body); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}

	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync archive file: %w", err)
	}

	w.logger.Debug("archived pasty", "site", site, "id", id, "path", path, "size", len(body))
	return path, nil
}

// sanitizeID strips anything that would not survive as a single path
// segment, so a pasty ID cannot escape its day directory via "../" or a
// path separator embedded by a hostile or malformed index page.
func sanitizeID(id string) string {
	cleaned := unsafeIDChars.ReplaceAllString(id, "_")
	if cleaned == "" {
		cleaned = "_"
	}
	return cleaned
}
