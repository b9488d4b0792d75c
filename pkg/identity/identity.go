// Package identity manages the persistent id of a server installation. The
// id is sent to the update provider with every download.
package identity

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const fileName = "id"

// Identity identifies one server installation.
type Identity struct {
	ID      string
	Version string // engine version, empty before the engine started
}

// Load reads the id stored in dir, creating and persisting a new random id
// when none exists or the stored one is not a valid UUID.
func Load(dir string) (*Identity, error) {
	path := filepath.Join(dir, fileName)
	if data, err := os.ReadFile(path); err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return &Identity{ID: id.String()}, nil
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	id := uuid.New()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o644); err != nil {
		return nil, err
	}
	return &Identity{ID: id.String()}, nil
}

// QueryString renders the identity as URL query parameters, for example
// "?id=...&version=6.1.0". A nil identity yields an empty string.
func (i *Identity) QueryString() string {
	if i == nil || i.ID == "" {
		return ""
	}
	q := url.Values{}
	q.Set("id", i.ID)
	if i.Version != "" {
		q.Set("version", i.Version)
	}
	return "?" + q.Encode()
}
