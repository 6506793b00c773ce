package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/hellopassport/internal/tokenstore"
	"github.com/dropDatabas3/hellopassport/internal/visa"
	"gopkg.in/yaml.v3"
)

const (
	FormJWT     = "jwt"
	FormCompact = "compact"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env         string `yaml:"env"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Keys struct {
		// vacío => claves demo embebidas (solo dev)
		File string `yaml:"file"`
	} `yaml:"keys"`

	Store Store `yaml:"store"`

	Broker Broker `yaml:"broker"`

	Issuers []Issuer `yaml:"issuers"`
}

type Store struct {
	Driver         string `yaml:"driver"` // memory | redis | postgres | dynamodb
	DSN            string `yaml:"dsn"`
	Table          string `yaml:"table"`
	ReapDelay      string `yaml:"reap_delay"`
	RevokePageSize int    `yaml:"revoke_page_size"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Dynamo struct {
		Region   string `yaml:"region"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"dynamo"`
}

type Broker struct {
	Issuer    string   `yaml:"issuer"`
	KID       string   `yaml:"kid"`
	TTL       string   `yaml:"ttl"`
	Audiences []string `yaml:"audiences"`
}

// Issuer describe un emisor de visas estático.
type Issuer struct {
	ID     string             `yaml:"id"`
	Issuer string             `yaml:"issuer"`
	KID    string             `yaml:"kid"`
	Form   string             `yaml:"form"` // jwt | compact
	TTL    string             `yaml:"ttl"`
	Grants map[string][]Grant `yaml:"grants"` // subject -> grants
}

// Grant es lo que un emisor afirma sobre un sujeto. Visa/Claims aplican a
// la forma jwt; Assertions a la compacta.
type Grant struct {
	Visa       *visa.Object   `yaml:"visa"`
	Claims     map[string]any `yaml:"claims"`
	Assertions []string       `yaml:"assertions"`
}

// Default devuelve la config usada cuando no hay archivo.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	// Normalizar ruta de claves (si relativa) respecto al directorio del YAML
	if p := strings.TrimSpace(c.Keys.File); p != "" && !filepath.IsAbs(p) && os.Getenv("KEYS_FILE") == "" {
		c.Keys.File = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}
	return c, nil
}

// Parse decodifica YAML, aplica defaults y env overrides y valida.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.ServiceName == "" {
		c.App.ServiceName = "hellopassport"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.RevokePageSize == 0 {
		c.Store.RevokePageSize = 25
	}
	if c.Broker.Issuer == "" {
		c.Broker.Issuer = "http://localhost:8080"
	}
	if c.Broker.KID == "" {
		c.Broker.KID = "rfc-rsa"
	}
	if c.Broker.TTL == "" {
		c.Broker.TTL = "1h"
	}
	for i := range c.Issuers {
		if c.Issuers[i].Form == "" {
			c.Issuers[i].Form = FormJWT
		}
		if c.Issuers[i].TTL == "" {
			c.Issuers[i].TTL = "1h"
		}
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// KEYS
	if v, ok := getEnvStr("KEYS_FILE"); ok {
		c.Keys.File = v
	}

	// STORE
	if v, ok := getEnvStr("STORE_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := getEnvStr("STORE_DSN"); ok {
		c.Store.DSN = v
	}
	// TABLE_NAME es el nombre que usa el despliegue en Lambda
	if v, ok := getEnvStr("TABLE_NAME"); ok {
		c.Store.Table = v
	}
	if v, ok := getEnvStr("STORE_TABLE"); ok {
		c.Store.Table = v
	}
	if v, ok := getEnvInt("STORE_REVOKE_PAGE_SIZE"); ok {
		c.Store.RevokePageSize = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Store.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Store.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Store.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Store.Redis.Prefix = v
	}
	if v, ok := getEnvStr("AWS_REGION"); ok {
		c.Store.Dynamo.Region = v
	}
	if v, ok := getEnvStr("DYNAMO_ENDPOINT"); ok {
		c.Store.Dynamo.Endpoint = v
	}
}

// Validate revisa driver, formas y duraciones.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "memory", "redis", "postgres", "dynamodb":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if c.Store.RevokePageSize < 0 {
		errs = append(errs, errors.New("store.revoke_page_size must be positive"))
	}
	if c.Store.ReapDelay != "" {
		if _, err := time.ParseDuration(c.Store.ReapDelay); err != nil {
			errs = append(errs, fmt.Errorf("store.reap_delay: %w", err))
		}
	}
	if _, err := Seconds(c.Broker.TTL); err != nil {
		errs = append(errs, fmt.Errorf("broker.ttl: %w", err))
	}

	seen := map[string]bool{}
	for i, is := range c.Issuers {
		where := fmt.Sprintf("issuers[%d]", i)
		if is.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", where))
		} else if seen[is.ID] {
			errs = append(errs, fmt.Errorf("%s.id %q is duplicated", where, is.ID))
		}
		seen[is.ID] = true
		if is.Issuer == "" {
			errs = append(errs, fmt.Errorf("%s.issuer is required", where))
		}
		if is.KID == "" {
			errs = append(errs, fmt.Errorf("%s.kid is required", where))
		}
		if is.Form != FormJWT && is.Form != FormCompact {
			errs = append(errs, fmt.Errorf("%s.form: must be %s or %s, got %q", where, FormJWT, FormCompact, is.Form))
		}
		if _, err := Seconds(is.TTL); err != nil {
			errs = append(errs, fmt.Errorf("%s.ttl: %w", where, err))
		}
	}
	return errors.Join(errs...)
}

// Seconds convierte una duración Go ("90m", "1h") a segundos enteros,
// que es lo que esperan los firmantes y el store.
func Seconds(d string) (int64, error) {
	if strings.TrimSpace(d) == "" {
		return 0, nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(d))
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative duration %q", d)
	}
	return int64(v / time.Second), nil
}

// ReapDelayDuration devuelve store.reap_delay ya validado (0 si no se configuró).
func (s Store) ReapDelayDuration() time.Duration {
	d, _ := time.ParseDuration(s.ReapDelay)
	return d
}

// TokenStore arma la config del backend elegido.
func (s Store) TokenStore() tokenstore.Config {
	return tokenstore.Config{
		Driver:    s.Driver,
		DSN:       s.DSN,
		Table:     s.Table,
		Addr:      s.Redis.Addr,
		Password:  s.Redis.Password,
		DB:        s.Redis.DB,
		Prefix:    s.Redis.Prefix,
		Region:    s.Dynamo.Region,
		Endpoint:  s.Dynamo.Endpoint,
		ReapDelay: s.ReapDelayDuration(),
	}
}
