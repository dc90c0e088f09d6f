package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file, its "includes", and the environment.
// Priority (highest to lowest): env vars > includes (later wins) > primary
// file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("PASTEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pastewatch")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc")
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".pastewatch"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for _, include := range cfg.Includes {
		if err := mergeInclude(v, include); err != nil {
			return nil, fmt.Errorf("merge include %q: %w", include, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config after includes: %w", err)
	}

	return cfg, nil
}

// mergeInclude layers one additional YAML file's keys on top of the
// already-loaded config. Later includes win over earlier ones and over the
// primary file, matching viper's MergeInConfig precedence.
func mergeInclude(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return v.MergeConfig(f)
}

// setDefaults registers default values in viper so env/flag overrides have a
// baseline even when the config file omits a section entirely.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("archive.dir", cfg.Archive.Dir)
	v.SetDefault("archive.compress", cfg.Archive.Compress)

	v.SetDefault("proxy.random", cfg.Proxy.Random)
	v.SetDefault("user-agent.random", cfg.UserAgent.Random)

	v.SetDefault("threads", cfg.Threads)

	v.SetDefault("redis.port", cfg.Redis.Port)
	v.SetDefault("redis.database", cfg.Redis.Database)

	v.SetDefault("db.database", cfg.Mongo.Database)
	v.SetDefault("db.collection", cfg.Mongo.Collection)

	v.SetDefault("email.port", cfg.Email.Port)
	v.SetDefault("email.subject", cfg.Email.Subject)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
