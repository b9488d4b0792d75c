package cache

import "time"

// Keyer derives cache keys.
type Keyer interface {
	// DescriptorKey identifies the parsed descriptor of one jar file. Size
	// and modification time are part of the key so a replaced file misses.
	DescriptorKey(path string, size int64, modTime time.Time) string
}

// DefaultKeyer is the unscoped [Keyer].
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) DescriptorKey(path string, size int64, modTime time.Time) string {
	return hashKey("descriptor", path, size, modTime.UnixNano())
}
