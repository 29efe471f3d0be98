package catalog

import (
	"sync/atomic"
)

// Provider hands out the current catalog snapshot. Reloads swap the pointer; audits
// already holding the previous snapshot finish against it.
type Provider struct {
	current atomic.Pointer[Snapshot]
}

// NewProvider creates a Provider serving initial.
func NewProvider(initial *Snapshot) *Provider {
	p := &Provider{}
	p.current.Store(initial)
	return p
}

// Current returns the active snapshot.
func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (p *Provider) Swap(next *Snapshot) *Snapshot {
	return p.current.Swap(next)
}
