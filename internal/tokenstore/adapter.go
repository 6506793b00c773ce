package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellopassport/internal/metrics"
	"github.com/dropDatabas3/hellopassport/internal/observability/logger"
	"go.uber.org/zap"
)

// DefaultRevokePageSize es el tamaño de página de RevokeByGrantID
// (coincide con el máximo de un BatchWriteItem de DynamoDB).
const DefaultRevokePageSize = 25

// Adapter implementa el contrato de persistencia del motor OIDC para un kind.
type Adapter struct {
	kind     string
	backend  Backend
	now      func() time.Time
	pageSize int
	log      *zap.Logger
}

// Option configura un Adapter.
type Option func(*Adapter)

// WithClock fija el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithRevokePageSize cambia el tamaño de página de revocación.
func WithRevokePageSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// WithLogger reemplaza el logger del adapter.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// New crea el adapter de kind sobre b.
func New(b Backend, kind string, opts ...Option) *Adapter {
	a := &Adapter{
		kind:     kind,
		backend:  b,
		now:      time.Now,
		pageSize: DefaultRevokePageSize,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = logger.Named("tokenstore").With(logger.Kind(kind), logger.Backend(b.Name()))
	}
	return a
}

func (a *Adapter) Kind() string { return a.kind }

// Key arma la clave física "<Kind>-<id>".
func (a *Adapter) Key(id string) string { return a.kind + "-" + id }

// Upsert reemplaza el registro de id. ttlSeconds <= 0 significa sin vencimiento.
func (a *Adapter) Upsert(ctx context.Context, id string, payload Payload, ttlSeconds int64) error {
	rec := newRecord(a.Key(id), payload, ttlSeconds, a.now())
	rec.Indexes = projectIndexes(rec.Payload)
	if err := a.backend.Put(ctx, rec); err != nil {
		return fmt.Errorf("tokenstore: upsert %s: %w", rec.Key, err)
	}
	return nil
}

// Find devuelve (nil, nil) si no existe o está vencido.
func (a *Adapter) Find(ctx context.Context, id string) (Payload, error) {
	rec, err := a.backend.Get(ctx, a.Key(id))
	return a.visible(rec, err)
}

// FindByUserCode busca por el índice userCode (device flow).
func (a *Adapter) FindByUserCode(ctx context.Context, userCode string) (Payload, error) {
	rec, err := a.backend.FindByIndex(ctx, IndexUserCode, userCode)
	return a.visible(rec, err)
}

// FindByUID busca por el índice uid (sesiones).
func (a *Adapter) FindByUID(ctx context.Context, uid string) (Payload, error) {
	rec, err := a.backend.FindByIndex(ctx, IndexUID, uid)
	return a.visible(rec, err)
}

func (a *Adapter) visible(rec *Record, err error) (Payload, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec == nil || IsExpired(rec, a.now()) {
		return nil, nil
	}
	return rec.Payload, nil
}

// Consume marca payload.consumed con el unix actual. ErrNotFound si no existe.
func (a *Adapter) Consume(ctx context.Context, id string) error {
	key := a.Key(id)
	if err := a.backend.SetConsumed(ctx, key, a.now().Unix()); err != nil {
		return fmt.Errorf("tokenstore: consume %s: %w", key, err)
	}
	return nil
}

// Destroy borra el registro; borrar algo inexistente no es error.
func (a *Adapter) Destroy(ctx context.Context, id string) error {
	key := a.Key(id)
	if err := a.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("tokenstore: destroy %s: %w", key, err)
	}
	return nil
}

// RevokeByGrantID borra todo registro con ese grantId, página por página,
// hasta agotar el cursor. No es atómico entre páginas; se puede re-ejecutar.
func (a *Adapter) RevokeByGrantID(ctx context.Context, grantID string) error {
	var (
		cursor string
		pages  int
		total  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		keys, next, err := a.backend.ScanIndex(ctx, IndexGrantID, grantID, a.pageSize, cursor)
		if err != nil {
			return fmt.Errorf("tokenstore: revoke grant %s: %w", grantID, err)
		}
		if len(keys) > 0 {
			if err := a.backend.DeleteMany(ctx, keys); err != nil {
				return fmt.Errorf("tokenstore: revoke grant %s: %w", grantID, err)
			}
			total += len(keys)
			metrics.RevokedRecords.Add(float64(len(keys)))
		}
		pages++
		if next == "" {
			break
		}
		cursor = next
	}
	a.log.Debug("grant revoked", logger.GrantID(grantID), zap.Int("pages", pages), logger.Count(total))
	return nil
}
