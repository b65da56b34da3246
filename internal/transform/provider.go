package transform

import (
	"context"
	"sync"
)

// LoadFunc loads a Store.
type LoadFunc func(ctx context.Context) (*Store, error)

// Provider loads a Store at most once. Concurrent first callers block on the single
// load and all callers share its result, including a failure.
type Provider struct {
	load  LoadFunc
	once  sync.Once
	store *Store
	err   error
}

// NewProvider creates a Provider around load.
func NewProvider(load LoadFunc) *Provider {
	return &Provider{load: load}
}

// StaticProvider returns a Provider that always yields store.
func StaticProvider(store *Store) *Provider {
	p := &Provider{}
	p.once.Do(func() { p.store = store })
	return p
}

// Get returns the Store, loading it on first use. Cancelling ctx does not abort a
// load other callers may be waiting on.
func (p *Provider) Get(ctx context.Context) (*Store, error) {
	p.once.Do(func() {
		p.store, p.err = p.load(context.WithoutCancel(ctx))
	})
	return p.store, p.err
}
