package http

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/passport"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Issuer es lo que el router necesita de un emisor de visas.
type Issuer interface {
	passport.VisaIssuer
	Issuer() string
	JWKS() (keys.JWKS, error)
}

// Deps agrupa lo que se monta. Broker y Metrics son opcionales.
type Deps struct {
	Issuers []Issuer
	Broker  *passport.Broker
	Metrics http.Handler
}

// IssuerPath es el prefijo bajo el que se monta el emisor id.
func IssuerPath(id string) string { return "/issuers/" + id }

// NewRouter arma el router raíz:
//
//	GET /healthz
//	GET /metrics
//	GET /.well-known/openid-configuration   (broker)
//	GET /.well-known/jwks                   (broker)
//	GET /passport?sub=
//	GET /issuers/{id}/.well-known/openid-configuration
//	GET /issuers/{id}/.well-known/jwks
//	GET /issuers/{id}/visa?sub=
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(
		WithRequestID,
		middleware.Recoverer,
		WithMetrics,
		WithLogging,
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	if d.Broker != nil {
		b := &brokerRoutes{broker: d.Broker}
		r.Get("/.well-known/openid-configuration", discovery(d.Broker.Issuer))
		r.Get("/.well-known/jwks", jwks(d.Broker.JWKS))
		r.Get("/passport", b.getPassport)
	}

	for _, iss := range d.Issuers {
		r.Mount(IssuerPath(iss.ID()), issuerRouter(iss))
	}
	return r
}

func issuerRouter(iss Issuer) http.Handler {
	routes := &issuerRoutes{issuer: iss}
	r := chi.NewRouter()
	r.Get("/.well-known/openid-configuration", discovery(iss.Issuer()))
	r.Get("/.well-known/jwks", jwks(iss.JWKS))
	r.Get("/visa", routes.getVisa)
	return r
}

type discoveryDoc struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

func discovery(issuer string) http.HandlerFunc {
	doc := discoveryDoc{
		Issuer:  issuer,
		JWKSURI: strings.TrimRight(issuer, "/") + "/.well-known/jwks",
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, doc)
	}
}

func jwks(load func() (keys.JWKS, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := load()
		if err != nil {
			serverError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, set)
	}
}
