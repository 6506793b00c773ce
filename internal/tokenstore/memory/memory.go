// Package memory es el backend en proceso de tokenstore (patrickmn/go-cache).
//
// El borrado físico ocurre ReapDelay después de expiresAt, igual que el TTL
// diferido de DynamoDB; mientras tanto el adapter los oculta por IsExpired.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/hellopassport/internal/tokenstore"
	"github.com/patrickmn/go-cache"
)

const (
	DriverName      = "memory"
	cleanupInterval = time.Minute
)

func init() {
	tokenstore.RegisterDriver(tokenstore.DriverFunc{
		DriverName: DriverName,
		OpenFunc: func(_ context.Context, cfg tokenstore.Config) (tokenstore.Backend, error) {
			return New(cfg.ReapDelay), nil
		},
	})
}

// Backend guarda cada Record serializado en JSON.
type Backend struct {
	mu        sync.Mutex // serializa read-modify-write
	c         *cache.Cache
	reapDelay time.Duration
}

// New crea un backend vacío.
func New(reapDelay time.Duration) *Backend {
	return &Backend{
		c:         cache.New(cache.NoExpiration, cleanupInterval),
		reapDelay: reapDelay,
	}
}

func (b *Backend) Name() string { return DriverName }

// expiration traduce expiresAt al TTL de go-cache. Un TTL negativo en
// go-cache significa "nunca", por eso el mínimo es 1ns.
func (b *Backend) expiration(rec *tokenstore.Record) time.Duration {
	if rec.ExpiresAt <= 0 {
		return cache.NoExpiration
	}
	d := time.Until(time.Unix(rec.ExpiresAt, 0).Add(b.reapDelay))
	if d <= 0 {
		return time.Nanosecond
	}
	return d
}

func (b *Backend) Put(_ context.Context, rec *tokenstore.Record) error {
	data, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("memory: encode %s: %w", rec.Key, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.c.Set(rec.Key, data, b.expiration(rec))
	return nil
}

func (b *Backend) Get(_ context.Context, key string) (*tokenstore.Record, error) {
	return b.load(key)
}

func (b *Backend) load(key string) (*tokenstore.Record, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, tokenstore.ErrNotFound
	}
	return tokenstore.DecodeRecord(v.([]byte))
}

// matching devuelve las claves con idx=value, ordenadas.
func (b *Backend) matching(idx tokenstore.Index, value string) ([]string, error) {
	var keys []string
	for k, it := range b.c.Items() {
		rec, err := tokenstore.DecodeRecord(it.Object.([]byte))
		if err != nil {
			return nil, fmt.Errorf("memory: decode %s: %w", k, err)
		}
		if rec.Indexes[idx] == value {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Backend) FindByIndex(_ context.Context, idx tokenstore.Index, value string) (*tokenstore.Record, error) {
	keys, err := b.matching(idx, value)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		rec, err := b.load(k)
		if err == nil {
			return rec, nil
		}
	}
	return nil, tokenstore.ErrNotFound
}

// ScanIndex pagina por clave (keyset): cursor es la última clave entregada.
func (b *Backend) ScanIndex(_ context.Context, idx tokenstore.Index, value string, limit int, cursor string) ([]string, string, error) {
	keys, err := b.matching(idx, value)
	if err != nil {
		return nil, "", err
	}
	start := 0
	if cursor != "" {
		start = sort.SearchStrings(keys, cursor)
		if start < len(keys) && keys[start] == cursor {
			start++
		}
	}
	keys = keys[start:]
	if limit <= 0 || len(keys) <= limit {
		return keys, "", nil
	}
	page := keys[:limit]
	return page, page[len(page)-1], nil
}

func (b *Backend) SetConsumed(_ context.Context, key string, at int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, exp, ok := b.c.GetWithExpiration(key)
	if !ok {
		return tokenstore.ErrNotFound
	}
	rec, err := tokenstore.DecodeRecord(v.([]byte))
	if err != nil {
		return err
	}
	rec.Payload[tokenstore.FieldConsumed] = at
	data, err := rec.Encode()
	if err != nil {
		return err
	}
	// conserva el vencimiento físico original
	d := cache.NoExpiration
	if !exp.IsZero() {
		if d = time.Until(exp); d <= 0 {
			d = time.Nanosecond
		}
	}
	b.c.Set(key, data, d)
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.c.Delete(key)
	return nil
}

func (b *Backend) DeleteMany(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		b.c.Delete(k)
	}
	return nil
}

// Len cuenta registros físicamente presentes (vencidos incluidos hasta el reap).
func (b *Backend) Len() int { return b.c.ItemCount() }

func (b *Backend) Close() error {
	b.c.Flush()
	return nil
}
