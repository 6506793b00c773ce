package tokenstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Backend es el almacenamiento físico de Records. Cada Put reemplaza el
// registro completo (incluidos sus índices) de forma atómica.
type Backend interface {
	Name() string

	Put(ctx context.Context, rec *Record) error
	// Get devuelve ErrNotFound si la clave no existe. No filtra vencidos.
	Get(ctx context.Context, key string) (*Record, error)
	// FindByIndex devuelve el primer registro cuyo índice vale value.
	FindByIndex(ctx context.Context, idx Index, value string) (*Record, error)
	// ScanIndex pagina las claves con idx=value. next vacío = no hay más.
	ScanIndex(ctx context.Context, idx Index, value string, limit int, cursor string) (keys []string, next string, err error)
	// SetConsumed escribe payload.consumed=at; ErrNotFound si no existe.
	SetConsumed(ctx context.Context, key string, at int64) error
	// Delete es idempotente.
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) error

	Close() error
}

// Config selecciona y configura un driver.
type Config struct {
	Driver string // memory | redis | postgres | dynamodb

	// postgres
	DSN string
	// postgres / dynamodb
	Table string

	// redis
	Addr     string
	Password string
	DB       int
	Prefix   string

	// dynamodb
	Region   string
	Endpoint string

	// memory: demora del reap físico después de expiresAt
	ReapDelay time.Duration
}

// Driver abre backends de un tipo.
type Driver interface {
	Name() string
	Open(ctx context.Context, cfg Config) (Backend, error)
}

var (
	registryMu sync.RWMutex
	drivers    = make(map[string]Driver)
)

// RegisterDriver se llama desde el init() de cada backend.
func RegisterDriver(d Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := d.Name()
	if _, exists := drivers[name]; exists {
		panic(fmt.Sprintf("tokenstore: driver %q already registered", name))
	}
	drivers[name] = d
}

// Drivers registrados, ordenados.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open abre el backend de cfg.Driver envuelto con métricas.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	registryMu.RLock()
	d, ok := drivers[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDriver, cfg.Driver, Drivers())
	}
	b, err := d.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: open %s: %w", cfg.Driver, err)
	}
	return Instrument(b), nil
}

// DriverFunc adapta una función a Driver.
type DriverFunc struct {
	DriverName string
	OpenFunc   func(ctx context.Context, cfg Config) (Backend, error)
}

func (f DriverFunc) Name() string { return f.DriverName }
func (f DriverFunc) Open(ctx context.Context, cfg Config) (Backend, error) {
	return f.OpenFunc(ctx, cfg)
}
