// Package redis es el backend de tokenstore sobre Redis (go-redis v9).
//
// Layout de claves:
//
//	<prefix>rec:<key>            JSON del Record, con EXPIREAT = expiresAt
//	<prefix>idx:<index>:<value>  sorted set (score 0) de claves de Record
//
// Los índices son sorted sets para paginar con ZRANGEBYLEX por clave; el
// cursor sigue siendo válido aunque se borren miembros entre páginas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellopassport/internal/tokenstore"
	"github.com/redis/go-redis/v9"
)

const (
	DriverName      = "redis"
	DefaultPrefix   = "hellopassport:"
	findBatch       = 16
	maxWatchRetries = 3
)

func init() {
	tokenstore.RegisterDriver(tokenstore.DriverFunc{
		DriverName: DriverName,
		OpenFunc: func(ctx context.Context, cfg tokenstore.Config) (tokenstore.Backend, error) {
			return Open(ctx, cfg)
		},
	})
}

// Backend implementa tokenstore.Backend.
type Backend struct {
	client redis.UniversalClient
	prefix string
}

// Open conecta a cfg.Addr y verifica con PING.
func Open(ctx context.Context, cfg tokenstore.Config) (*Backend, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return NewWithClient(rdb, prefix), nil
}

// NewWithClient usa un cliente existente (miniredis en tests).
func NewWithClient(client redis.UniversalClient, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) Name() string { return DriverName }

func (b *Backend) recKey(key string) string { return b.prefix + "rec:" + key }

func (b *Backend) idxKey(idx tokenstore.Index, value string) string {
	return b.prefix + "idx:" + string(idx) + ":" + value
}

func (b *Backend) load(ctx context.Context, c redis.Cmdable, key string) (*tokenstore.Record, error) {
	raw, err := c.Get(ctx, b.recKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, tokenstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec, err := tokenstore.DecodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return rec, nil
}

// watch corre fn en una transacción optimista y reintenta si otra escritura ganó.
func (b *Backend) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxWatchRetries; i++ {
		err = b.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// Put reemplaza registro e índices en un MULTI/EXEC.
func (b *Backend) Put(ctx context.Context, rec *tokenstore.Record) error {
	data, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", rec.Key, err)
	}
	rk := b.recKey(rec.Key)

	return b.watch(ctx, func(tx *redis.Tx) error {
		prev, err := b.load(ctx, tx, rec.Key)
		if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, data, 0)
			if rec.ExpiresAt > 0 {
				pipe.ExpireAt(ctx, rk, time.Unix(rec.ExpiresAt, 0))
			}
			if prev != nil {
				for idx, old := range prev.Indexes {
					if rec.Indexes[idx] != old {
						pipe.ZRem(ctx, b.idxKey(idx, old), rec.Key)
					}
				}
			}
			for idx, v := range rec.Indexes {
				pipe.ZAdd(ctx, b.idxKey(idx, v), redis.Z{Score: 0, Member: rec.Key})
			}
			return nil
		})
		return err
	}, rk)
}

func (b *Backend) Get(ctx context.Context, key string) (*tokenstore.Record, error) {
	return b.load(ctx, b.client, key)
}

// members pagina el sorted set del índice después de cursor.
func (b *Backend) members(ctx context.Context, idx tokenstore.Index, value, cursor string, count int) ([]string, error) {
	lo := "-"
	if cursor != "" {
		lo = "(" + cursor
	}
	return b.client.ZRangeByLex(ctx, b.idxKey(idx, value), &redis.ZRangeBy{
		Min:   lo,
		Max:   "+",
		Count: int64(count),
	}).Result()
}

// FindByIndex salta miembros colgantes (registro ya expirado por Redis) y los limpia.
func (b *Backend) FindByIndex(ctx context.Context, idx tokenstore.Index, value string) (*tokenstore.Record, error) {
	cursor := ""
	for {
		keys, err := b.members(ctx, idx, value, cursor, findBatch)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			rec, err := b.load(ctx, b.client, k)
			if errors.Is(err, tokenstore.ErrNotFound) {
				b.client.ZRem(ctx, b.idxKey(idx, value), k)
				continue
			}
			if err != nil {
				return nil, err
			}
			if rec.Indexes[idx] == value {
				return rec, nil
			}
		}
		if len(keys) < findBatch {
			return nil, tokenstore.ErrNotFound
		}
		cursor = keys[len(keys)-1]
	}
}

func (b *Backend) ScanIndex(ctx context.Context, idx tokenstore.Index, value string, limit int, cursor string) ([]string, string, error) {
	if limit <= 0 {
		limit = tokenstore.DefaultRevokePageSize
	}
	keys, err := b.members(ctx, idx, value, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(keys) > limit {
		keys = keys[:limit]
		next = keys[limit-1]
	}
	live, err := b.matching(ctx, idx, value, keys)
	if err != nil {
		return nil, "", err
	}
	return live, next, nil
}

// matching deja solo las claves cuyo registro existe y sigue proyectando
// idx=value. Los miembros colgantes o de un registro re-escrito con otro
// valor se quitan del índice. El cursor sigue siendo la última clave leída.
func (b *Backend) matching(ctx context.Context, idx tokenstore.Index, value string, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rks := make([]string, len(keys))
	for i, k := range keys {
		rks[i] = b.recKey(k)
	}
	raws, err := b.client.MGet(ctx, rks...).Result()
	if err != nil {
		return nil, err
	}
	live := make([]string, 0, len(keys))
	var stale []any
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			stale = append(stale, keys[i])
			continue
		}
		rec, err := tokenstore.DecodeRecord([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("redis: decode %s: %w", keys[i], err)
		}
		if rec.Indexes[idx] != value {
			stale = append(stale, keys[i])
			continue
		}
		live = append(live, keys[i])
	}
	if len(stale) > 0 {
		if err := b.client.ZRem(ctx, b.idxKey(idx, value), stale...).Err(); err != nil {
			return nil, err
		}
	}
	return live, nil
}

// SetConsumed reescribe el JSON conservando el TTL (SET ... KEEPTTL).
func (b *Backend) SetConsumed(ctx context.Context, key string, at int64) error {
	rk := b.recKey(key)
	return b.watch(ctx, func(tx *redis.Tx) error {
		rec, err := b.load(ctx, tx, key)
		if err != nil {
			return err
		}
		rec.Payload[tokenstore.FieldConsumed] = at
		data, err := rec.Encode()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, data, redis.KeepTTL)
			return nil
		})
		return err
	}, rk)
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	return b.DeleteMany(ctx, []string{key})
}

// DeleteMany borra registros y sus entradas de índice en una sola transacción.
func (b *Backend) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	rks := make([]string, len(keys))
	for i, k := range keys {
		rks[i] = b.recKey(k)
	}
	return b.watch(ctx, func(tx *redis.Tx) error {
		raws, err := tx.MGet(ctx, rks...).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, rks...)
			for i, raw := range raws {
				s, ok := raw.(string)
				if !ok {
					continue
				}
				rec, err := tokenstore.DecodeRecord([]byte(s))
				if err != nil {
					continue
				}
				for idx, v := range rec.Indexes {
					pipe.ZRem(ctx, b.idxKey(idx, v), keys[i])
				}
			}
			return nil
		})
		return err
	}, rks...)
}

func (b *Backend) Close() error { return b.client.Close() }
