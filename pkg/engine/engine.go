package engine

import (
	"context"
	"time"

	"github.com/matzehuels/cfboot/pkg/config"
	"github.com/matzehuels/cfboot/pkg/framework"
	"github.com/matzehuels/cfboot/pkg/resolver"
)

// Capability names an engine operation that needs authorization.
type Capability string

// CapRestart allows restarting the engine.
const CapRestart Capability = "restart"

// Info describes a running engine.
type Info struct {
	Version   string
	BuildTime time.Time
}

// Engine is the runtime started from the core module.
type Engine interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
	Info() Info
	// Can reports whether credential grants the capability.
	Can(c Capability, credential string) bool
	ServerConfig() *config.Config
}

// HostConfig is configuration handed over by the hosting process, one per
// host that attached to the engine.
type HostConfig struct {
	Name  string
	Props map[string]string
}

// RuntimeContext carries the running engine and everything it was built
// from. It is passed explicitly instead of being looked up globally.
type RuntimeContext struct {
	Engine    Engine
	Core      *framework.Module
	Framework framework.Framework
	Resolver  *resolver.Resolver
	Config    *config.Config
	Hosts     []HostConfig
}

// Factory creates the engine for a started core module.
type Factory interface {
	NewEngine(ctx context.Context, rc *RuntimeContext) (Engine, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, rc *RuntimeContext) (Engine, error)

func (f FactoryFunc) NewEngine(ctx context.Context, rc *RuntimeContext) (Engine, error) {
	return f(ctx, rc)
}
