package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/juju/lumberjack/v2"

	"github.com/matzehuels/cfboot/pkg/config"
	"github.com/matzehuels/cfboot/pkg/observability"
)

// Log file rotation.
const (
	logMaxSizeMB  = 50
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// configureLogging applies cfboot.log.level (unless --verbose was given) and
// tees output into the rotating cfboot.log.file.
func (c *CLI) configureLogging(cfg *config.Config) error {
	if !c.verbose {
		c.Logger.SetLevel(cfg.LogLevel())
	}
	path := cfg.LogFile()
	if path == "" || c.logFile != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}
	c.logFile = lj
	c.Logger.SetOutput(io.MultiWriter(os.Stderr, lj))
	return nil
}

// progress logs completion of an operation with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs e.g. "Resolved lucee.core:6.0.1 (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the command logger, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// logHooks forwards library events to the CLI logger.
type logHooks struct {
	logger *log.Logger
}

func (h logHooks) OnResolveStart(_ context.Context, name, version string) {
	h.logger.Debug("resolving", "module", name, "version", version)
}

func (h logHooks) OnResolveComplete(_ context.Context, name, version, status string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("resolve finished", "module", name, "version", version, "status", status, "took", d.Round(time.Millisecond), "error", err)
		return
	}
	h.logger.Debug("resolve finished", "module", name, "version", version, "status", status, "took", d.Round(time.Millisecond))
}

func (h logHooks) OnDownload(_ context.Context, name, version string, size int64, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("download failed", "module", name, "version", version, "error", err)
		return
	}
	h.logger.Info("downloaded", "module", name, "version", version, "bytes", size, "took", d.Round(time.Millisecond))
}

func (h logHooks) OnStop(_ context.Context, name, version string, forced bool) {
	if forced {
		h.logger.Warn("stopped module forcibly", "module", name, "version", version)
		return
	}
	h.logger.Debug("stopped module", "module", name, "version", version)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "kind", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "kind", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "kind", keyType, "bytes", size)
}

func (h logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("request", "method", method, "host", host, "path", path)
}

func (h logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("response", "method", method, "host", host, "path", path, "status", status, "took", d.Round(time.Millisecond))
}

func (h logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Warn("request failed", "method", method, "host", host, "path", path, "error", err)
}

// installHooks routes resolver, cache and HTTP events to l.
func installHooks(l *log.Logger) {
	h := logHooks{logger: l}
	observability.SetResolverHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

var (
	_ observability.ResolverHooks = logHooks{}
	_ observability.CacheHooks    = logHooks{}
	_ observability.HTTPHooks     = logHooks{}
)
