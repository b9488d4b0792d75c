// Package buildinfo carries the launcher's build stamp.
//
// The release build sets the variables with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/cfboot/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/cfboot/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/matzehuels/cfboot/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/cfboot
package buildinfo

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent is sent with update provider requests.
func UserAgent() string {
	return fmt.Sprintf("cfboot/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String returns the build stamp as "key: value" lines.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\ngo: %s", Version, Commit, Date, runtime.Version())
}

// Template is the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
