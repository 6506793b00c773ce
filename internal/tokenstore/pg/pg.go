// Package pg es el backend de tokenstore sobre PostgreSQL (pgx v5).
// Una sola tabla: payload en jsonb y una columna por índice secundario.
package pg

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dropDatabas3/hellopassport/internal/tokenstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DriverName   = "postgres"
	DefaultTable = "oidc_record"
)

//go:embed schema.sql
var schemaSQL string

var validIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// columnas por índice
var indexColumn = map[tokenstore.Index]string{
	tokenstore.IndexUID:      "uid",
	tokenstore.IndexGrantID:  "grant_id",
	tokenstore.IndexUserCode: "user_code",
}

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
	pool  *pgxpool.Pool
	table string
}

// Open crea el pool, hace ping y asegura el schema.
func Open(ctx context.Context, cfg tokenstore.Config) (*Backend, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	b, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := b.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// NewWithPool usa un pool existente; table vacío = DefaultTable.
func NewWithPool(pool *pgxpool.Pool, table string) (*Backend, error) {
	t, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Backend{pool: pool, table: t}, nil
}

func tableName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultTable, nil
	}
	if !validIdentifier.MatchString(name) {
		return "", fmt.Errorf("pg: invalid table name %q", name)
	}
	return name, nil
}

// EnsureSchema crea tabla e índices si no existen.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	sql := strings.ReplaceAll(schemaSQL, "{{table}}", b.table)
	if _, err := b.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("pg: ensure schema: %w", err)
	}
	return nil
}

func (b *Backend) Name() string { return DriverName }

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfZero(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}

func (b *Backend) Put(ctx context.Context, rec *tokenstore.Record) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("pg: encode %s: %w", rec.Key, err)
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (model_id, payload, expires_at, uid, grant_id, user_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (model_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at,
			uid = EXCLUDED.uid,
			grant_id = EXCLUDED.grant_id,
			user_code = EXCLUDED.user_code`, b.table)
	_, err = b.pool.Exec(ctx, q,
		rec.Key, payload, nullIfZero(rec.ExpiresAt),
		nullIfEmpty(rec.Indexes[tokenstore.IndexUID]),
		nullIfEmpty(rec.Indexes[tokenstore.IndexGrantID]),
		nullIfEmpty(rec.Indexes[tokenstore.IndexUserCode]),
	)
	return err
}

func (b *Backend) selectCols() string {
	return "model_id, payload, expires_at, uid, grant_id, user_code"
}

func scanRecord(row pgx.Row) (*tokenstore.Record, error) {
	var (
		rec                    tokenstore.Record
		payload                []byte
		expiresAt              *int64
		uid, grantID, userCode *string
	)
	if err := row.Scan(&rec.Key, &payload, &expiresAt, &uid, &grantID, &userCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tokenstore.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, fmt.Errorf("pg: decode %s: %w", rec.Key, err)
	}
	if rec.Payload == nil {
		rec.Payload = tokenstore.Payload{}
	}
	if expiresAt != nil {
		rec.ExpiresAt = *expiresAt
	}
	rec.Indexes = map[tokenstore.Index]string{}
	for idx, v := range map[tokenstore.Index]*string{
		tokenstore.IndexUID:      uid,
		tokenstore.IndexGrantID:  grantID,
		tokenstore.IndexUserCode: userCode,
	} {
		if v != nil {
			rec.Indexes[idx] = *v
		}
	}
	return &rec, nil
}

func (b *Backend) Get(ctx context.Context, key string) (*tokenstore.Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE model_id = $1`, b.selectCols(), b.table)
	return scanRecord(b.pool.QueryRow(ctx, q, key))
}

func (b *Backend) FindByIndex(ctx context.Context, idx tokenstore.Index, value string) (*tokenstore.Record, error) {
	col, ok := indexColumn[idx]
	if !ok {
		return nil, fmt.Errorf("pg: unknown index %q", idx)
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY model_id LIMIT 1`, b.selectCols(), b.table, col)
	return scanRecord(b.pool.QueryRow(ctx, q, value))
}

// ScanIndex pagina por model_id (keyset); pide limit+1 filas para saber si hay más.
func (b *Backend) ScanIndex(ctx context.Context, idx tokenstore.Index, value string, limit int, cursor string) ([]string, string, error) {
	col, ok := indexColumn[idx]
	if !ok {
		return nil, "", fmt.Errorf("pg: unknown index %q", idx)
	}
	if limit <= 0 {
		limit = tokenstore.DefaultRevokePageSize
	}
	q := fmt.Sprintf(`SELECT model_id FROM %s WHERE %s = $1 AND model_id > $2 ORDER BY model_id LIMIT $3`, b.table, col)
	rows, err := b.pool.Query(ctx, q, value, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, "", err
	}
	if len(keys) <= limit {
		return keys, "", nil
	}
	page := keys[:limit]
	return page, page[limit-1], nil
}

func (b *Backend) SetConsumed(ctx context.Context, key string, at int64) error {
	q := fmt.Sprintf(`UPDATE %s SET payload = jsonb_set(payload, '{%s}', to_jsonb($2::bigint)) WHERE model_id = $1`,
		b.table, tokenstore.FieldConsumed)
	tag, err := b.pool.Exec(ctx, q, key, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tokenstore.ErrNotFound
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE model_id = $1`, b.table), key)
	return err
}

func (b *Backend) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := b.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE model_id = ANY($1)`, b.table), keys)
	return err
}

// PurgeExpired borra físicamente lo vencido antes de now (el reaper de este backend).
func (b *Backend) PurgeExpired(ctx context.Context, nowUnix int64) (int64, error) {
	tag, err := b.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= $1`, b.table), nowUnix)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Truncate vacía la tabla (tests).
func (b *Backend) Truncate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, b.table))
	return err
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
