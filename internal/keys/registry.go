package keys

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry es un mapa kid -> Key inmutable tras construirse.
type Registry struct {
	keys map[string]Key
}

// NewRegistry parsea todas las definiciones; la primera inválida aborta.
func NewRegistry(defs map[string]Definition) (*Registry, error) {
	r := &Registry{keys: make(map[string]Key, len(defs))}
	for kid, def := range defs {
		k, err := def.Parse(kid)
		if err != nil {
			return nil, err
		}
		r.keys[kid] = k
	}
	return r, nil
}

// NewRegistryFromKeys arma un registry con claves ya construidas.
func NewRegistryFromKeys(ks ...Key) (*Registry, error) {
	r := &Registry{keys: make(map[string]Key, len(ks))}
	for _, k := range ks {
		if k == nil {
			return nil, fmt.Errorf("%w: nil key", ErrUnsupportedKeyType)
		}
		if _, dup := r.keys[k.KID()]; dup {
			return nil, fmt.Errorf("keys: duplicate kid %q", k.KID())
		}
		r.keys[k.KID()] = k
	}
	return r, nil
}

// LoadFile lee un archivo de definiciones kid -> Definition (YAML o JSON).
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defs, err := ParseDefinitions(b)
	if err != nil {
		return nil, fmt.Errorf("keys: %s: %w", path, err)
	}
	return NewRegistry(defs)
}

// ParseDefinitions decodifica un documento kid -> Definition.
func ParseDefinitions(b []byte) (map[string]Definition, error) {
	defs := map[string]Definition{}
	if err := yaml.Unmarshal(b, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *Registry) Get(kid string) (Key, error) {
	k, ok := r.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyID, kid)
	}
	return k, nil
}

// RSA devuelve la clave de firma JWT para kid.
func (r *Registry) RSA(kid string) (*RSAKey, error) {
	k, err := r.Get(kid)
	if err != nil {
		return nil, err
	}
	rk, ok := k.(*RSAKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s, want RSA", ErrUnsupportedKeyType, kid, k.Kty())
	}
	return rk, nil
}

// Ed25519 devuelve la clave de firma de visas compactas para kid.
func (r *Registry) Ed25519(kid string) (*Ed25519Key, error) {
	k, err := r.Get(kid)
	if err != nil {
		return nil, err
	}
	ek, ok := k.(*Ed25519Key)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s, want OKP", ErrUnsupportedKeyType, kid, k.Kty())
	}
	return ek, nil
}

// KIDs ordenados.
func (r *Registry) KIDs() []string {
	out := make([]string, 0, len(r.keys))
	for kid := range r.keys {
		out = append(out, kid)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int { return len(r.keys) }

// PublicJWKS proyecta todo el registry.
func (r *Registry) PublicJWKS() (JWKS, error) {
	return DerivePublicJWKS(r.keys)
}

// Subset devuelve un registry con solo los kids pedidos.
func (r *Registry) Subset(kids ...string) (*Registry, error) {
	out := &Registry{keys: make(map[string]Key, len(kids))}
	for _, kid := range kids {
		k, err := r.Get(kid)
		if err != nil {
			return nil, err
		}
		out.keys[kid] = k
	}
	return out, nil
}
