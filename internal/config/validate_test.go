package config

import "testing"

func baseValidConfig() *Config {
	cfg := DefaultConfig()
	cfg.Sites = map[string]SiteConfig{
		"pastebin": {
			Enable:       true,
			DownloadURL:  "https://pastebin.com/raw/%s",
			ArchiveURL:   "https://pastebin.com/archive",
			ArchiveRegex: `<a href="/(\w{8})">`,
		},
	}
	return cfg
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	if err := Validate(baseValidConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsNoSites(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Sites = nil
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty sites map")
	}
}

func TestValidateRejectsBadThreadCount(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Threads = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for threads=0")
	}
}

func TestValidateRejectsDownloadURLWithoutPlaceholder(t *testing.T) {
	cfg := baseValidConfig()
	site := cfg.Sites["pastebin"]
	site.DownloadURL = "https://pastebin.com/raw/"
	cfg.Sites["pastebin"] = site
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for a download-url with no {id} placeholder")
	}
}

func TestValidateRejectsMissingArchiveRegexForRegexStrategy(t *testing.T) {
	cfg := baseValidConfig()
	site := cfg.Sites["pastebin"]
	site.ArchiveRegex = ""
	cfg.Sites["pastebin"] = site
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for missing archive-regex under the default regex strategy")
	}
}

func TestValidateRejectsInvalidParserStrategy(t *testing.T) {
	cfg := baseValidConfig()
	site := cfg.Sites["pastebin"]
	site.ParserStrategy = "telekinesis"
	cfg.Sites["pastebin"] = site
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unsupported parser strategy")
	}
}

func TestValidateRejectsInvertedUpdateWindow(t *testing.T) {
	cfg := baseValidConfig()
	site := cfg.Sites["pastebin"]
	site.UpdateMin, site.UpdateMax = 30, 10
	cfg.Sites["pastebin"] = site
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when update-min exceeds update-max")
	}
}

func TestValidateRequiresMongoURIWhenEnabled(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Mongo.Enable = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled mongo without a URI")
	}
}

func TestValidateRequiresEmailFieldsWhenAlertEnabled(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Email.Alert = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled email alerting without server/from/to")
	}
}

func TestValidateRejectsBadSignaturePattern(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Search = []SignatureConfig{{Name: "broken", Pattern: "(unclosed"}}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
}
