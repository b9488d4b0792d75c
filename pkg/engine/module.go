package engine

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/config"
	"github.com/matzehuels/cfboot/pkg/framework"
	"github.com/matzehuels/cfboot/pkg/resolver"
)

const builtDateLayout = "2006-01-02 15:04:05"

// ModuleEngine is the default Engine: the core module itself. Starting the
// engine starts the module, and the build information comes from its
// manifest.
type ModuleEngine struct {
	core     *framework.Module
	resolver *resolver.Resolver
	cfg      *config.Config
	info     Info
}

// ModuleFactory builds ModuleEngines.
var ModuleFactory = FactoryFunc(func(ctx context.Context, rc *RuntimeContext) (Engine, error) {
	e := &ModuleEngine{
		core:     rc.Core,
		resolver: rc.Resolver,
		cfg:      rc.Config,
		info:     Info{Version: rc.Core.Version.String()},
	}
	if d, err := rc.Resolver.Store().Describe(ctx, rc.Core.Location); err == nil {
		if t, err := time.Parse(builtDateLayout, d.Headers.Get(bundle.HeaderBuiltDate)); err == nil {
			e.info.BuildTime = t
		}
	}
	return e, nil
})

func (e *ModuleEngine) Start(ctx context.Context) error {
	return e.resolver.Start(ctx, e.core, resolver.NewVisiting())
}

func (e *ModuleEngine) Stop(ctx context.Context) error {
	return e.resolver.StopModule(ctx, e.core)
}

// Reset stops and starts the core module again.
func (e *ModuleEngine) Reset(ctx context.Context) error {
	if err := e.Stop(ctx); err != nil {
		return err
	}
	return e.Start(ctx)
}

func (e *ModuleEngine) Info() Info { return e.info }

// Can grants CapRestart to the configured restart password. Without a
// configured password nothing is granted.
func (e *ModuleEngine) Can(c Capability, credential string) bool {
	if c != CapRestart {
		return false
	}
	want := e.cfg.RestartPassword()
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(credential)) == 1
}

func (e *ModuleEngine) ServerConfig() *config.Config { return e.cfg }
