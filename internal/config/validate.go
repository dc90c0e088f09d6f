package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Threads < 1 {
		return fmt.Errorf("threads must be >= 1, got %d", cfg.Threads)
	}
	if cfg.Threads > 256 {
		return fmt.Errorf("threads must be <= 256, got %d", cfg.Threads)
	}

	if len(cfg.Sites) == 0 {
		return fmt.Errorf("at least one [site.<name>] must be configured")
	}
	for name, site := range cfg.Sites {
		if !site.Enable {
			continue
		}
		if site.DownloadURL == "" {
			return fmt.Errorf("site %q: download-url is required", name)
		}
		if !strings.Contains(site.DownloadURL, "{id}") && !strings.Contains(site.DownloadURL, "%s") {
			return fmt.Errorf("site %q: download-url must contain an {id} placeholder", name)
		}
		if site.ArchiveURL == "" {
			return fmt.Errorf("site %q: archive-url is required", name)
		}
		switch site.ParserStrategy {
		case "", "regex", "css", "xpath", "browser":
		default:
			return fmt.Errorf("site %q: parser-strategy %q is not supported", name, site.ParserStrategy)
		}
		if site.ParserStrategy == "" || site.ParserStrategy == "regex" {
			if site.ArchiveRegex == "" {
				return fmt.Errorf("site %q: archive-regex is required for the regex parser strategy", name)
			}
			if _, err := regexp.Compile(site.ArchiveRegex); err != nil {
				return fmt.Errorf("site %q: invalid archive-regex: %w", name, err)
			}
		}
		if site.UpdateMin < 0 || site.UpdateMax < 0 {
			return fmt.Errorf("site %q: update-min/update-max must be >= 0", name)
		}
		if site.UpdateMax > 0 && site.UpdateMin > site.UpdateMax {
			return fmt.Errorf("site %q: update-min (%d) must be <= update-max (%d)", name, site.UpdateMin, site.UpdateMax)
		}
	}

	for i, sig := range cfg.Search {
		label := sig.Name
		if label == "" {
			label = sig.Description
		}
		if sig.Pattern == "" {
			return fmt.Errorf("search[%d] (%s): search pattern is required", i, label)
		}
		if _, err := regexp.Compile(sig.Pattern); err != nil {
			return fmt.Errorf("search[%d] (%s): invalid search pattern: %w", i, label, err)
		}
		if sig.Exclude != "" {
			if _, err := regexp.Compile(sig.Exclude); err != nil {
				return fmt.Errorf("search[%d] (%s): invalid exclude pattern: %w", i, label, err)
			}
		}
		if sig.MinCount < 0 {
			return fmt.Errorf("search[%d] (%s): count must be >= 0", i, label)
		}
	}

	if cfg.Mongo.Enable && cfg.Mongo.URI == "" {
		return fmt.Errorf("db.uri is required when db.enable is true")
	}

	if cfg.Redis.Queue && cfg.Redis.Server == "" {
		return fmt.Errorf("redis.server is required when redis.queue is true")
	}

	if cfg.Email.Alert {
		if cfg.Email.Server == "" {
			return fmt.Errorf("email.server is required when email.alert is true")
		}
		if cfg.Email.From == "" {
			return fmt.Errorf("email.from is required when email.alert is true")
		}
		if len(cfg.Email.To) == 0 {
			return fmt.Errorf("email.to must list at least one recipient when email.alert is true")
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}
