package passport

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/metrics"
	"github.com/dropDatabas3/hellopassport/internal/observability/logger"
	"golang.org/x/sync/errgroup"
)

// VisaIssuer es un emisor de visas consultado por el broker.
// ok=false significa "no hay visa para este sujeto" y no es error.
type VisaIssuer interface {
	ID() string
	CreateVisaFor(ctx context.Context, subject string) (visa string, ok bool, err error)
}

// Assemble consulta a todos los emisores en paralelo y devuelve las visas
// en el orden de issuers, sin los huecos. El primer error cancela el resto
// y se devuelve: no hay pasaportes parciales.
func Assemble(ctx context.Context, issuers []VisaIssuer, subject string) ([]string, error) {
	results := make([]string, len(issuers))
	found := make([]bool, len(issuers))

	g, gctx := errgroup.WithContext(ctx)
	for i, iss := range issuers {
		i, iss := i, iss
		g.Go(func() error {
			v, ok, err := iss.CreateVisaFor(gctx, subject)
			if err != nil {
				return fmt.Errorf("passport: issuer %s: %w", iss.ID(), err)
			}
			if ok {
				results[i], found[i] = v, true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(issuers))
	for i := range results {
		if found[i] {
			out = append(out, results[i])
		}
	}
	return out, nil
}

// Broker firma pasaportes con las visas de sus emisores.
type Broker struct {
	Issuer    string
	KID       string
	Key       *keys.RSAKey
	Issuers   []VisaIssuer
	Audiences []string
	Signer    Signer
}

// PassportFor arma y firma el pasaporte de subject.
func (b *Broker) PassportFor(ctx context.Context, subject string) (string, error) {
	visas, err := Assemble(ctx, b.Issuers, subject)
	if err != nil {
		logger.From(ctx).Warn("passport assembly failed", logger.Subject(subject), logger.Err(err))
		return "", err
	}
	tok, err := b.Signer.Passport(b.Key, b.Issuer, b.KID, subject, visas, b.Audiences)
	if err != nil {
		metrics.SigningErrors.WithLabelValues("passport").Inc()
		return "", err
	}
	metrics.PassportsIssued.Inc()
	logger.From(ctx).Debug("passport issued", logger.Subject(subject), logger.Count(len(visas)))
	return tok, nil
}

// JWKS publica la clave del broker.
func (b *Broker) JWKS() (keys.JWKS, error) {
	return keys.DerivePublicJWKS(map[string]keys.Key{b.KID: b.Key})
}
