package tokenstore

import (
	"context"
	"sync"
)

// Store reparte un Adapter por kind sobre un mismo backend.
type Store struct {
	backend Backend
	opts    []Option

	mu       sync.Mutex
	adapters map[string]*Adapter
}

// NewStore crea el factory; opts se aplican a cada adapter.
func NewStore(b Backend, opts ...Option) *Store {
	return &Store{backend: b, opts: opts, adapters: map[string]*Adapter{}}
}

// OpenStore abre el backend de cfg y devuelve su Store.
func OpenStore(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	b, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(b, opts...), nil
}

// Adapter devuelve (y cachea) el adapter de kind.
func (s *Store) Adapter(kind string) *Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.adapters[kind]; ok {
		return a
	}
	a := New(s.backend, kind, s.opts...)
	s.adapters[kind] = a
	return a
}

func (s *Store) Backend() Backend { return s.backend }

func (s *Store) Close() error { return s.backend.Close() }
