package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de firma y de storage. Viven en un paquete aparte para que
// issuer, passport y tokenstore las compartan sin ciclos de imports.

var (
	VisasIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hellopassport_visas_issued_total",
		Help: "Visas firmadas por emisor y forma (jwt|compact)",
	}, []string{"issuer", "form"})

	PassportsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hellopassport_passports_issued_total",
		Help: "Pasaportes firmados",
	})

	SigningErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hellopassport_signing_errors_total",
		Help: "Errores al firmar visas o pasaportes",
	}, []string{"op"})

	StoreOpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hellopassport_store_op_latency_ms",
		Help:    "Latencia de operaciones del backend de tokens en milisegundos",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 14),
	}, []string{"backend", "op"})

	StoreOpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hellopassport_store_op_errors_total",
		Help: "Operaciones del backend de tokens que fallaron (not found no cuenta)",
	}, []string{"backend", "op"})

	RevokedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hellopassport_revoked_records_total",
		Help: "Registros borrados por revokeByGrantId",
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		VisasIssued, PassportsIssued, SigningErrors,
		StoreOpLatency, StoreOpErrors, RevokedRecords,
	}
}

// Register registra todas las métricas en reg (o el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
