package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DirName is the per-workspace directory holding config, database and locks.
const DirName = ".codemap"

// Config represents the complete engine configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Storage      StorageConfig      `json:"storage" mapstructure:"storage"`
	Locks        LocksConfig        `json:"locks" mapstructure:"locks"`
	Platforms    PlatformsConfig    `json:"platforms" mapstructure:"platforms"`
	Trees        TreesConfig        `json:"trees" mapstructure:"trees"`
	Reconcile    ReconcileConfig    `json:"reconcile" mapstructure:"reconcile"`
	Integrations IntegrationsConfig `json:"integrations" mapstructure:"integrations"`
	Logging      LoggingConfig      `json:"logging" mapstructure:"logging"`
}

// StorageConfig contains the sqlite database location
type StorageConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// LocksConfig selects the per-project lock implementation
type LocksConfig struct {
	Mode string `json:"mode" mapstructure:"mode"` // "memory" | "file"
	Dir  string `json:"dir" mapstructure:"dir"`
}

// PlatformsConfig points at an optional TOML override of the platform table
type PlatformsConfig struct {
	OverridesPath string `json:"overridesPath" mapstructure:"overridesPath"`
}

// TreesConfig contains repository tree snapshot settings
type TreesConfig struct {
	SnapshotPath   string   `json:"snapshotPath" mapstructure:"snapshotPath"`
	Exclude        []string `json:"exclude" mapstructure:"exclude"`
	FetchTimeoutMs int      `json:"fetchTimeoutMs" mapstructure:"fetchTimeoutMs"`
}

// FetchTimeout returns the bounded wait for a tree fetch.
func (t TreesConfig) FetchTimeout() time.Duration {
	return time.Duration(t.FetchTimeoutMs) * time.Millisecond
}

// ReconcileConfig contains reconciliation policy
type ReconcileConfig struct {
	// PruneUnbackedRules removes every automatic rule without a backing
	// automatic code mapping, not only rules for internal packages.
	PruneUnbackedRules bool `json:"pruneUnbackedRules" mapstructure:"pruneUnbackedRules"`
}

// InstallationConfig describes one organization's source code integration
type InstallationConfig struct {
	OrganizationID int64  `json:"organizationId" mapstructure:"organizationId"`
	IntegrationID  int64  `json:"integrationId" mapstructure:"integrationId"`
	Provider       string `json:"provider" mapstructure:"provider"`
	DomainName     string `json:"domainName" mapstructure:"domainName"`
}

// IntegrationsConfig contains the installation table
type IntegrationsConfig struct {
	Installations []InstallationConfig `json:"installations" mapstructure:"installations"`
	CacheSize     int                  `json:"cacheSize" mapstructure:"cacheSize"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Path: filepath.Join(DirName, "codemap.db"),
		},
		Locks: LocksConfig{
			Mode: "file",
			Dir:  filepath.Join(DirName, "locks"),
		},
		Trees: TreesConfig{
			SnapshotPath:   filepath.Join(DirName, "trees.yaml"),
			Exclude:        []string{"node_modules/", "vendor/", ".git/"},
			FetchTimeoutMs: 10000,
		},
		Integrations: IntegrationsConfig{
			CacheSize: 256,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <root>/.codemap/config.json.
// CODEMAP_* environment variables override file values.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, DirName))

	v.SetEnvPrefix("CODEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths(root)

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("locks.mode", d.Locks.Mode)
	v.SetDefault("locks.dir", d.Locks.Dir)
	v.SetDefault("platforms.overridesPath", d.Platforms.OverridesPath)
	v.SetDefault("trees.snapshotPath", d.Trees.SnapshotPath)
	v.SetDefault("trees.exclude", d.Trees.Exclude)
	v.SetDefault("trees.fetchTimeoutMs", d.Trees.FetchTimeoutMs)
	v.SetDefault("reconcile.pruneUnbackedRules", d.Reconcile.PruneUnbackedRules)
	v.SetDefault("integrations.cacheSize", d.Integrations.CacheSize)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
}

// resolvePaths anchors relative paths at root.
func (c *Config) resolvePaths(root string) {
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
	c.Storage.Path = anchor(c.Storage.Path)
	c.Locks.Dir = anchor(c.Locks.Dir)
	c.Platforms.OverridesPath = anchor(c.Platforms.OverridesPath)
	c.Trees.SnapshotPath = anchor(c.Trees.SnapshotPath)
	c.Logging.File = anchor(c.Logging.File)
}

// Save writes the configuration to <root>/.codemap/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Storage.Path == "" {
		return &ConfigError{Field: "storage.path", Message: "must not be empty"}
	}
	switch c.Locks.Mode {
	case "memory":
	case "file":
		if c.Locks.Dir == "" {
			return &ConfigError{Field: "locks.dir", Message: "required when locks.mode is file"}
		}
	default:
		return &ConfigError{Field: "locks.mode", Message: "must be memory or file"}
	}
	if c.Trees.FetchTimeoutMs <= 0 {
		return &ConfigError{Field: "trees.fetchTimeoutMs", Message: "must be positive"}
	}
	if c.Integrations.CacheSize <= 0 {
		return &ConfigError{Field: "integrations.cacheSize", Message: "must be positive"}
	}
	seen := make(map[int64]bool)
	for _, inst := range c.Integrations.Installations {
		if seen[inst.OrganizationID] {
			return &ConfigError{Field: "integrations.installations", Message: "duplicate organization"}
		}
		seen[inst.OrganizationID] = true
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
