package resolver

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/cfboot/pkg/framework"
	"github.com/matzehuels/cfboot/pkg/identity"
	"github.com/matzehuels/cfboot/pkg/version"
)

// Request describes one module to resolve.
type Request struct {
	// Name is the symbolic name of the module.
	Name string
	// Version pins the module version. Nil accepts any local version and
	// downloads the latest one.
	Version *version.Version
	// Identity is sent to the update provider. Nil falls back to the
	// resolver's identity.
	Identity *identity.Identity
	// Extra lists additional jar files or directories searched after the
	// store directory.
	Extra []string
	// StartIfNecessary starts the module once it is installed.
	StartIfNecessary bool
	// VersionOnlyMattersForDownload lets any local version satisfy the
	// request; Version is only used when the module is downloaded.
	VersionOnlyMattersForDownload bool
	// DownloadIfMissing fetches the module from the update provider when no
	// local file matches.
	DownloadIfMissing bool
	// Parent names the module that required this one, for diagnostics.
	Parent string
}

// Key returns "name:version", or the bare name for unversioned requests.
func (r Request) Key() string {
	if r.Version == nil {
		return r.Name
	}
	return r.Name + ":" + r.Version.String()
}

func (r Request) versionText() string {
	if r.Version == nil {
		return ""
	}
	return r.Version.String()
}

// Status classifies a Result.
type Status int

const (
	// Resolved means the module is installed and, when requested, active.
	Resolved Status = iota
	// PartiallyResolved means the module is installed but could not be
	// started. Module and Unmet are set.
	PartiallyResolved
	// Failed means no module could be installed. Err is set.
	Failed
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case PartiallyResolved:
		return "partially_resolved"
	}
	return "failed"
}

// Result is the outcome of Resolve.
type Result struct {
	Status Status
	Module *framework.Module
	// Unmet lists the requirements that could not be downloaded or loaded.
	Unmet []string
	Err   error
}

// Visiting holds the keys of the modules whose start is being recovered
// higher up in the same resolution. It belongs to one top-level call and
// must not be shared between unrelated calls.
type Visiting struct {
	keys map[string]struct{}
}

// NewVisiting returns an empty set.
func NewVisiting() *Visiting {
	return &Visiting{keys: map[string]struct{}{}}
}

func (v *Visiting) Add(key string) { v.keys[strings.ToLower(key)] = struct{}{} }

func (v *Visiting) Has(key string) bool {
	_, ok := v.keys[strings.ToLower(key)]
	return ok
}

func (v *Visiting) Len() int { return len(v.keys) }

// Keys returns the visited keys in sorted order.
func (v *Visiting) Keys() []string { return slices.Sorted(maps.Keys(v.keys)) }

// Definition describes a loaded module.
type Definition struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	State    string `json:"state"`
	Location string `json:"location,omitempty"`
}
