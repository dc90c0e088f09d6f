package config

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for PasteWatch.
type Config struct {
	Network   NetworkConfig         `mapstructure:"network"    yaml:"network"`
	Archive   ArchiveConfig         `mapstructure:"archive"    yaml:"archive"`
	Proxy     ProxyConfig           `mapstructure:"proxy"      yaml:"proxy"`
	UserAgent UserAgentConfig       `mapstructure:"user-agent" yaml:"user-agent"`
	Threads   int                   `mapstructure:"threads"    yaml:"threads"`
	Redis     RedisConfig           `mapstructure:"redis"      yaml:"redis"`
	Mongo     MongoConfig           `mapstructure:"db"         yaml:"db"`
	Email     EmailConfig           `mapstructure:"email"      yaml:"email"`
	Sites     map[string]SiteConfig `mapstructure:"site"       yaml:"site"`
	Search    []SignatureConfig     `mapstructure:"search"     yaml:"search"`
	Includes  []string              `mapstructure:"includes"   yaml:"includes"`
	Metrics   MetricsConfig         `mapstructure:"metrics"    yaml:"metrics"`
	Logging   LoggingConfig         `mapstructure:"logging"    yaml:"logging"`
}

// NetworkConfig controls the outbound network identity used for every fetch.
type NetworkConfig struct {
	// IP optionally binds all outbound connections to a specific local
	// source address, e.g. when the host has several egress IPs.
	IP string `mapstructure:"ip" yaml:"ip"`
}

// ArchiveConfig controls the local pasty archive.
type ArchiveConfig struct {
	Dir      string `mapstructure:"dir"       yaml:"dir"`
	DirAll   string `mapstructure:"dir-all"   yaml:"dir-all"`
	Save     bool   `mapstructure:"save"      yaml:"save"`
	SaveAll  bool   `mapstructure:"save-all"  yaml:"save-all"`
	Compress bool   `mapstructure:"compress"  yaml:"compress"`
}

// ProxyConfig controls outbound proxy rotation.
type ProxyConfig struct {
	Random bool   `mapstructure:"random" yaml:"random"`
	File   string `mapstructure:"file"   yaml:"file"`
}

// UserAgentConfig controls User-Agent rotation.
type UserAgentConfig struct {
	Random bool   `mapstructure:"random" yaml:"random"`
	File   string `mapstructure:"file"   yaml:"file"`
}

// RedisConfig controls the optional secondary archive-path queue.
type RedisConfig struct {
	Queue    bool   `mapstructure:"queue"    yaml:"queue"`
	Server   string `mapstructure:"server"   yaml:"server"`
	Port     int    `mapstructure:"port"     yaml:"port"`
	Database int    `mapstructure:"database" yaml:"database"`
}

// MongoConfig controls the durable persistence backend.
type MongoConfig struct {
	Enable     bool   `mapstructure:"enable"     yaml:"enable"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// EmailConfig controls alert delivery.
type EmailConfig struct {
	Alert    bool     `mapstructure:"alert"    yaml:"alert"`
	Server   string   `mapstructure:"server"   yaml:"server"`
	Port     int      `mapstructure:"port"     yaml:"port"`
	From     string   `mapstructure:"from"     yaml:"from"`
	To       []string `mapstructure:"to"       yaml:"to"`
	Subject  string   `mapstructure:"subject"  yaml:"subject"`
	Username string   `mapstructure:"username" yaml:"username"`
	Password string   `mapstructure:"password" yaml:"password"`
}

// SiteConfig describes one monitored paste-hosting site.
type SiteConfig struct {
	Enable         bool   `mapstructure:"enable"          yaml:"enable"`
	DownloadURL    string `mapstructure:"download-url"    yaml:"download-url"`
	ArchiveURL     string `mapstructure:"archive-url"     yaml:"archive-url"`
	ArchiveRegex   string `mapstructure:"archive-regex"   yaml:"archive-regex"`
	ParserStrategy string `mapstructure:"parser-strategy" yaml:"parser-strategy"`
	UpdateMin      int    `mapstructure:"update-min"      yaml:"update-min"` // seconds
	UpdateMax      int    `mapstructure:"update-max"      yaml:"update-max"` // seconds
}

// SignatureConfig is one entry in the "search" signature catalog. The regex
// itself is also configured under a key named "search", the same name the
// catalog list carries one level up.
type SignatureConfig struct {
	Name        string `mapstructure:"name"        yaml:"name"`
	Description string `mapstructure:"description" yaml:"description"`
	Pattern     string `mapstructure:"search"      yaml:"search"`
	MinCount    int    `mapstructure:"count"       yaml:"count"`
	Exclude     string `mapstructure:"exclude"     yaml:"exclude"`
	Public      bool   `mapstructure:"public"      yaml:"public"`
	To          string `mapstructure:"to"          yaml:"to"`
	RegexFlags  string `mapstructure:"regex-flags" yaml:"regex-flags"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			Dir:      "./archive",
			Compress: true,
		},
		Proxy: ProxyConfig{
			Random: true,
		},
		UserAgent: UserAgentConfig{
			Random: true,
		},
		Threads: 4,
		Redis: RedisConfig{
			Port:     6379,
			Database: 0,
		},
		Mongo: MongoConfig{
			Database:   "pastewatch",
			Collection: "pasties",
		},
		Email: EmailConfig{
			Port:    25,
			Subject: "pastewatch alert",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
