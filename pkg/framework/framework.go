// Package framework defines the module framework contract the resolver
// drives, and provides Local, an in-process implementation.
//
// The framework owns module handles: it installs module images, tracks their
// lifecycle state and decides whether a module's requirements are met when
// it is started.
//
//	installed → resolved → starting → active
//	active → stopping → resolved
//	any → uninstalled
package framework

import (
	"context"
	"errors"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/version"
)

// ErrStopped is returned by every operation after Shutdown.
var ErrStopped = errors.New("module framework stopped")

// SystemModuleID identifies the framework's own module.
const SystemModuleID = 0

// State is the lifecycle state of a module.
type State int

const (
	Uninstalled State = iota
	Installed
	Resolved
	Starting
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Installed:
		return "installed"
	case Resolved:
		return "resolved"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	}
	return "uninstalled"
}

// Transient reports whether the module is between two stable states.
func (s State) Transient() bool { return s == Starting || s == Stopping }

// Module is a handle to an installed module.
type Module struct {
	ID       int64
	Name     string
	Version  version.Version
	Location string
}

// Key returns "name:version".
func (m *Module) Key() string { return bundle.Key(m.Name, m.Version) }

func (m *Module) String() string { return m.Key() }

// IsSystem reports whether m is the framework's own module.
func (m *Module) IsSystem() bool { return m.ID == SystemModuleID }

// Revision is the wiring view of an installed module.
type Revision struct {
	Requirements []bundle.Requirement
	Exports      []bundle.PackageExport
	FragmentHost string
}

// IsFragment reports whether the module attaches to a host.
func (r *Revision) IsFragment() bool { return r.FragmentHost != "" }

// Framework installs and runs modules.
type Framework interface {
	// Install adds the jar at location. Installing a name and version that is
	// already present returns the existing module.
	Install(ctx context.Context, location string) (*Module, error)
	// Start resolves and activates m. With force, a module that is still
	// starting or stopping is started anyway.
	Start(ctx context.Context, m *Module, force bool) error
	Stop(ctx context.Context, m *Module) error
	Uninstall(ctx context.Context, m *Module) error
	State(m *Module) State
	// Installed lists every module that is not uninstalled, ordered by id.
	Installed() []*Module
	Revision(m *Module) (*Revision, error)
	// Entry returns one archive entry of the module image.
	Entry(m *Module, path string) ([]byte, error)
	// Shutdown stops every module and the framework itself.
	Shutdown(ctx context.Context) error
}
