package config

import (
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cfboot/pkg/errors"
)

// Property keys.
const (
	KeyUpdateLocation  = "cfboot.update.location"
	KeyDownload        = "cfboot.enable.bundle.download"
	KeyBundlesDir      = "cfboot.bundles.dir"
	KeyBaseDir         = "cfboot.base.dir"
	KeyServerDir       = "cfboot.server.dir"
	KeyPrintExceptions = "cfboot.cli.printExceptions"
	KeyLogLevel        = "cfboot.log.level"
	KeyLogFile         = "cfboot.log.file"
	KeyCoreName        = "cfboot.core.name"
	KeyCoreVersion     = "cfboot.core.version"
	KeyCacheBackend    = "cfboot.cache.backend"
	KeyCacheRedis      = "cfboot.cache.redis"
	KeyBootDelegation  = "cfboot.bootdelegation"
	KeyRestartPassword = "cfboot.restart.password"
)

// Defaults.
const (
	DefaultUpdateLocation = "https://update.lucee.org"
	DefaultCoreName       = "lucee.core"
	DefaultServerDir      = ".cfboot"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// UpdateLocation is the update provider base URL without a trailing slash.
func (c *Config) UpdateLocation() string {
	return strings.TrimRight(c.String(KeyUpdateLocation, DefaultUpdateLocation), "/")
}

// DownloadEnabled reports whether missing modules may be downloaded.
func (c *Config) DownloadEnabled() bool { return c.Bool(KeyDownload, true) }

// ServerDir is the root of all runtime state.
func (c *Config) ServerDir() string { return c.String(KeyServerDir, DefaultServerDir) }

// BaseDir holds the framework cache. It defaults to the server directory.
func (c *Config) BaseDir() string { return c.String(KeyBaseDir, c.ServerDir()) }

// BundlesDir is the module store directory, {base}/bundles unless set.
func (c *Config) BundlesDir() string {
	return c.String(KeyBundlesDir, filepath.Join(c.BaseDir(), "bundles"))
}

// FrameworkDir is where the module framework keeps installed copies.
func (c *Config) FrameworkDir() string { return filepath.Join(c.BaseDir(), "framework") }

// CacheDir holds the descriptor file cache.
func (c *Config) CacheDir() string { return filepath.Join(c.BaseDir(), "cache") }

// PrintExceptions reports whether full error chains should be printed.
func (c *Config) PrintExceptions() bool { return c.Bool(KeyPrintExceptions, false) }

// LogFile is the rotated log file path, empty when logging to stderr only.
func (c *Config) LogFile() string { return c.String(KeyLogFile, "") }

// CoreName is the symbolic name of the engine module.
func (c *Config) CoreName() string { return c.String(KeyCoreName, DefaultCoreName) }

// CoreVersion is the pinned engine version, empty for the newest available.
func (c *Config) CoreVersion() string { return c.String(KeyCoreVersion, "") }

// CacheBackend is one of CacheFile, CacheRedis or CacheNone.
func (c *Config) CacheBackend() (string, error) {
	b := strings.ToLower(c.String(KeyCacheBackend, CacheFile))
	switch b {
	case CacheFile, CacheRedis, CacheNone:
		return b, nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q (want file, redis or none)", b)
}

// RedisURL is the connection URL of the redis cache backend.
func (c *Config) RedisURL() string { return c.String(KeyCacheRedis, "redis://localhost:6379/0") }

// BootDelegation lists extra packages the host provides to every module.
func (c *Config) BootDelegation() []string { return c.List(KeyBootDelegation) }

// RestartPassword is the credential required to restart the engine. Empty
// disables restarts.
func (c *Config) RestartPassword() string { return c.String(KeyRestartPassword, "") }

// LogLevel returns the configured level, info when unset or unknown.
func (c *Config) LogLevel() log.Level {
	lvl, ok := ParseLogLevel(c.String(KeyLogLevel, ""))
	if !ok {
		return log.InfoLevel
	}
	return lvl
}

// ParseLogLevel maps "error", "warning"/"warn", "info", "debug" or the
// numbers 0 to 4 onto a log level. 0 and 1 both mean error.
func ParseLogLevel(s string) (log.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "1", "error":
		return log.ErrorLevel, true
	case "2", "warning", "warn":
		return log.WarnLevel, true
	case "3", "info":
		return log.InfoLevel, true
	case "4", "debug":
		return log.DebugLevel, true
	}
	return log.InfoLevel, false
}
