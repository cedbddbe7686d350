package identity

import (
	"context"
	"sync"
)

type memoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryDirectory constructs a seedable in-memory directory for
// tests. Unknown ids are simply absent from the result, mirroring the
// real directory service.
func NewMemoryDirectory(profiles map[string]Profile) Directory {
	if profiles == nil {
		profiles = make(map[string]Profile)
	}
	return &memoryDirectory{profiles: profiles}
}

func (d *memoryDirectory) Lookup(_ context.Context, ids []string) (map[string]Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]Profile, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
