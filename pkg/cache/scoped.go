package cache

import "time"

// ScopedKeyer prefixes every key of an inner Keyer. Engines sharing one Redis
// instance scope their keys by server id:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "server:"+id+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, which defaults to a DefaultKeyer when nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) DescriptorKey(path string, size int64, modTime time.Time) string {
	return k.prefix + k.inner.DescriptorKey(path, size, modTime)
}
