// Package cli implements the cfboot command-line interface.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cfboot/pkg/cache"
	"github.com/matzehuels/cfboot/pkg/config"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/fetch"
	"github.com/matzehuels/cfboot/pkg/framework"
	"github.com/matzehuels/cfboot/pkg/identity"
	"github.com/matzehuels/cfboot/pkg/resolver"
	"github.com/matzehuels/cfboot/pkg/store"
)

const appName = "cfboot"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	overrides  []string
	verbose    bool
	trace      bool

	logFile io.Closer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Close releases the log file, if one was opened.
func (c *CLI) Close() error {
	if c.logFile != nil {
		return c.logFile.Close()
	}
	return nil
}

// config loads the configuration file and applies --set overrides.
func (c *CLI) config() (*config.Config, error) {
	path := c.configPath
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	for _, kv := range c.overrides {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "invalid override [%s], expected key=value", kv)
		}
		cfg.Set(strings.TrimSpace(key), value)
	}
	return cfg, nil
}

// ReportError prints a failed command's error. The full cause chain is
// printed with --trace or when the configuration asks for it.
func (c *CLI) ReportError(w io.Writer, err error) {
	printError(w, "%s", errors.UserMessage(err))
	if !c.trace {
		cfg, cerr := c.config()
		if cerr != nil || !cfg.PrintExceptions() {
			return
		}
	}
	for _, line := range errors.Chain(err)[1:] {
		printDetail(w, "caused by: %s", line)
	}
}

// runtime is the resolution stack a command works with.
type runtime struct {
	cfg      *config.Config
	cache    cache.Cache
	store    *store.Store
	fetch    *fetch.Fetcher
	fw       *framework.Local
	resolver *resolver.Resolver
	id       *identity.Identity
}

func (c *CLI) newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if err := c.configureLogging(cfg); err != nil {
		return nil, err
	}
	if err := errors.ValidateURL(cfg.UpdateLocation()); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid %s [%s]", config.KeyUpdateLocation, cfg.UpdateLocation())
	}

	ch, err := newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	id, err := identity.Load(cfg.ServerDir())
	if err != nil {
		c.Logger.Warn("no server identity, downloads are anonymous", "error", err)
	}

	dir := cfg.BundlesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		ch.Close()
		return nil, fmt.Errorf("create bundle dir: %w", err)
	}
	boot := framework.DefaultBootDelegation(cfg.BootDelegation()...)
	fw, err := framework.NewLocal(cfg.FrameworkDir(),
		framework.WithBootDelegation(boot),
		framework.WithFrameworkLogger(c.Logger.WithPrefix("framework")),
	)
	if err != nil {
		ch.Close()
		return nil, err
	}

	storeOpts := []store.Option{store.WithCache(ch), store.WithLogger(c.Logger.WithPrefix("store"))}
	if id != nil {
		// a shared Redis may serve several installations
		storeOpts = append(storeOpts, store.WithKeyer(cache.NewScopedKeyer(cache.NewDefaultKeyer(), "server:"+id.ID+":")))
	}
	st := store.New(dir, storeOpts...)
	f := fetch.New(dir,
		fetch.WithBaseURL(cfg.UpdateLocation()),
		fetch.WithEnabled(cfg.DownloadEnabled()),
		fetch.WithLogger(c.Logger.WithPrefix("fetch")),
	)
	r := resolver.New(fw, st,
		resolver.WithFetcher(f),
		resolver.WithIdentity(id),
		resolver.WithBootDelegation(boot),
		resolver.WithLogger(c.Logger.WithPrefix("resolver")),
	)
	return &runtime{cfg: cfg, cache: ch, store: st, fetch: f, fw: fw, resolver: r, id: id}, nil
}

// Close shuts the framework down and releases the cache.
func (rt *runtime) Close(ctx context.Context) error {
	if err := rt.fw.Shutdown(ctx); err != nil && !stderrors.Is(err, framework.ErrStopped) {
		rt.cache.Close()
		return err
	}
	return rt.cache.Close()
}

// newCache opens the descriptor cache selected by cfboot.cache.backend.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	backend, err := cfg.CacheBackend()
	if err != nil {
		return nil, err
	}
	switch backend {
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, cfg.RedisURL(), "")
	case config.CacheNone:
		return cache.NewNullCache(), nil
	default:
		return cache.NewFileCache(cfg.CacheDir())
	}
}

// defaultConfigPath follows the XDG layout (~/.config/cfboot/cfboot.toml).
func defaultConfigPath() string {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, appName, appName+".toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return appName + ".toml"
	}
	return filepath.Join(home, ".config", appName, appName+".toml")
}
