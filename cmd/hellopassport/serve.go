package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpx "github.com/dropDatabas3/hellopassport/internal/http"
	"github.com/dropDatabas3/hellopassport/internal/observability/logger"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sirve discovery/JWKS de emisores y broker, /passport y /metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, issuers, err := a.broker()
			if err != nil {
				return err
			}
			metricsHandler, err := httpx.RegisterMetrics(nil)
			if err != nil {
				return err
			}

			deps := httpx.Deps{Broker: b, Metrics: metricsHandler}
			for _, s := range issuers {
				deps.Issuers = append(deps.Issuers, s)
				logger.Named("cli").Info("visa issuer mounted",
					logger.Issuer(s.Issuer()), logger.KID(s.KID()), logger.VisaForm(s.Form()),
					logger.Path(httpx.IssuerPath(s.ID())))
			}

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return httpx.Serve(ctx, addr, httpx.NewRouter(deps))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "dirección de escucha; pisa server.addr")
	return cmd
}
