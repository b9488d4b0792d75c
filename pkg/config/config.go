// Package config resolves runtime settings from the environment, a TOML
// properties file and command line overrides.
//
// A key such as "cfboot.update.location" is looked up in this order:
//
//  1. the environment variable named exactly like the key
//  2. the property set by the file or by [Config.Set]
//  3. the environment variable with dots replaced by underscores and
//     upper-cased ("CFBOOT_UPDATE_LOCATION")
//
// The properties file may nest tables or use quoted dotted keys; both
// flatten to the same key:
//
//	[cfboot.update]
//	location = "https://mirror.example.org"
//
//	"cfboot.enable.bundle.download" = false
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/cfboot/pkg/errors"
)

// Config holds properties and looks keys up against the environment.
type Config struct {
	mu     sync.RWMutex
	props  map[string]string
	getenv func(string) (string, bool)
}

// New returns a Config with the given properties.
func New(props map[string]string) *Config {
	c := &Config{props: make(map[string]string, len(props)), getenv: os.LookupEnv}
	for k, v := range props {
		c.props[k] = v
	}
	return c
}

// Load reads a TOML properties file. A missing file yields an empty Config.
func Load(path string) (*Config, error) {
	if path == "" {
		return New(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(string(data))
}

// Parse reads TOML properties from text.
func Parse(text string) (*Config, error) {
	var raw map[string]any
	if _, err := toml.Decode(text, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing config TOML")
	}
	props := map[string]string{}
	flatten("", raw, props)
	return New(props), nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case []any:
			parts := make([]string, len(val))
			for i, p := range val {
				parts[i] = fmt.Sprint(p)
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Set overrides a property, for example from a command line flag.
func (c *Config) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.props[key] = value
}

// Lookup returns the value of key and whether it was found anywhere.
func (c *Config) Lookup(key string) (string, bool) {
	if v, ok := c.getenv(key); ok && v != "" {
		return v, true
	}
	c.mu.RLock()
	v, ok := c.props[key]
	c.mu.RUnlock()
	if ok && v != "" {
		return v, true
	}
	if v, ok := c.getenv(EnvName(key)); ok && v != "" {
		return v, true
	}
	return "", false
}

// EnvName converts a property key into its upper-case environment form.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// String returns the value of key or def.
func (c *Config) String(key, def string) string {
	if v, ok := c.Lookup(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

// Bool returns the boolean value of key. Values that do not parse as a
// boolean yield def.
func (c *Config) Bool(key string, def bool) bool {
	v, ok := c.Lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// List returns the comma separated values of key with blanks removed.
func (c *Config) List(key string) []string {
	v, ok := c.Lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Keys returns the property keys in sorted order. Environment-only values are
// not included.
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.props))
	for k := range c.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
