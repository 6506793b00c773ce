package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/hellopassport/internal/metrics"
)

type instrumented struct {
	inner Backend
	name  string
}

// Instrument envuelve b registrando latencia y errores por operación.
// ErrNotFound no cuenta como error.
func Instrument(b Backend) Backend {
	if _, ok := b.(*instrumented); ok {
		return b
	}
	return &instrumented{inner: b, name: b.Name()}
}

// Unwrap devuelve el backend sin métricas.
func Unwrap(b Backend) Backend {
	if i, ok := b.(*instrumented); ok {
		return i.inner
	}
	return b
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	metrics.StoreOpLatency.WithLabelValues(i.name, op).
		Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.StoreOpErrors.WithLabelValues(i.name, op).Inc()
	}
}

func (i *instrumented) Name() string { return i.name }

func (i *instrumented) Put(ctx context.Context, rec *Record) error {
	start := time.Now()
	err := i.inner.Put(ctx, rec)
	i.observe("put", start, err)
	return err
}

func (i *instrumented) Get(ctx context.Context, key string) (*Record, error) {
	start := time.Now()
	rec, err := i.inner.Get(ctx, key)
	i.observe("get", start, err)
	return rec, err
}

func (i *instrumented) FindByIndex(ctx context.Context, idx Index, value string) (*Record, error) {
	start := time.Now()
	rec, err := i.inner.FindByIndex(ctx, idx, value)
	i.observe("find_by_"+string(idx), start, err)
	return rec, err
}

func (i *instrumented) ScanIndex(ctx context.Context, idx Index, value string, limit int, cursor string) ([]string, string, error) {
	start := time.Now()
	keys, next, err := i.inner.ScanIndex(ctx, idx, value, limit, cursor)
	i.observe("scan_"+string(idx), start, err)
	return keys, next, err
}

func (i *instrumented) SetConsumed(ctx context.Context, key string, at int64) error {
	start := time.Now()
	err := i.inner.SetConsumed(ctx, key, at)
	i.observe("consume", start, err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.inner.Delete(ctx, key)
	i.observe("delete", start, err)
	return err
}

func (i *instrumented) DeleteMany(ctx context.Context, keys []string) error {
	start := time.Now()
	err := i.inner.DeleteMany(ctx, keys)
	i.observe("delete_many", start, err)
	return err
}

func (i *instrumented) Close() error { return i.inner.Close() }
