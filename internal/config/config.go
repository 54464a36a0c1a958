package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds application configuration.
type Config struct {
	// HistoryLimit is the maximum number of undo (and redo) checkpoints kept in memory.
	HistoryLimit int `json:"history_limit" env:"ATLAS_HISTORY_LIMIT"`

	// LegacyCapacityBytes caps the legacy key-value file, mirroring the browser's ~5MB localStorage quota.
	LegacyCapacityBytes int `json:"legacy_capacity_bytes" env:"ATLAS_LEGACY_CAPACITY_BYTES"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.atlas/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" env:"ATLAS_ALLOWED_PATHS"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" env:"ATLAS_ALLOW_UNSAFE_PATHS"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" env:"ATLAS_DB_MAX_OPEN_CONNS"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" env:"ATLAS_DB_MAX_IDLE_CONNS"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" env:"ATLAS_LOG_LEVEL"`

	// LogDev switches to human-readable console logs.
	LogDev bool `json:"log_dev,omitempty" env:"ATLAS_LOG_DEV"`

	// WebBind and WebPort control where `atlas serve` listens.
	WebBind string `json:"web_bind,omitempty" env:"ATLAS_WEB_BIND"`
	WebPort int    `json:"web_port,omitempty" env:"ATLAS_WEB_PORT"`

	// Backup* configure the S3-compatible bucket used by `atlas backup`.
	// An empty bucket disables remote backups.
	BackupBucket    string `json:"backup_bucket,omitempty" env:"ATLAS_BACKUP_BUCKET"`
	BackupRegion    string `json:"backup_region,omitempty" env:"ATLAS_BACKUP_REGION"`
	BackupEndpoint  string `json:"backup_endpoint,omitempty" env:"ATLAS_BACKUP_ENDPOINT"`
	BackupPathStyle bool   `json:"backup_path_style,omitempty" env:"ATLAS_BACKUP_PATH_STYLE"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" env:"ATLAS_DISABLED_TOOLS"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HistoryLimit:        20,
		LegacyCapacityBytes: 5 * 1024 * 1024,
		LogLevel:            "info",
		WebBind:             "127.0.0.1",
		WebPort:             8321,
	}
}

// Load loads configuration from baseDir/config.json, then applies ATLAS_* environment overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.atlas.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return applyEnv(cfg)
}

// LoadWithRepo loads configuration from both global (~/.atlas) and repo (.atlas) directories.
// Repo config is found by walking upward from startDir to find the nearest .atlas/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment overrides win over both files.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	return applyEnv(Merge(Merge(DefaultConfig(), global), repo))
}

// FindRepoConfig walks upward from startDir to find the nearest .atlas/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".atlas", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// applyEnv overlays ATLAS_* environment variables. Unset variables leave fields untouched.
func applyEnv(cfg *Config) (*Config, error) {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.HistoryLimit = pickInt(overlay.HistoryLimit, base.HistoryLimit)
	result.LegacyCapacityBytes = pickInt(overlay.LegacyCapacityBytes, base.LegacyCapacityBytes)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.WebPort = pickInt(overlay.WebPort, base.WebPort)

	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.WebBind = pickString(overlay.WebBind, base.WebBind)
	result.BackupBucket = pickString(overlay.BackupBucket, base.BackupBucket)
	result.BackupRegion = pickString(overlay.BackupRegion, base.BackupRegion)
	result.BackupEndpoint = pickString(overlay.BackupEndpoint, base.BackupEndpoint)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.LogDev = base.LogDev || overlay.LogDev
	result.BackupPathStyle = base.BackupPathStyle || overlay.BackupPathStyle

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
