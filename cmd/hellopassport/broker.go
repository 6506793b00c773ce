package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellopassport/internal/config"
	"github.com/dropDatabas3/hellopassport/internal/issuer"
	"github.com/dropDatabas3/hellopassport/internal/passport"
)

// broker arma los emisores de config y el broker que los consulta, en ese orden.
func (a *app) broker() (*passport.Broker, []*issuer.Static, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, nil, err
	}
	issuers, err := issuer.FromConfig(reg, a.cfg.Issuers)
	if err != nil {
		return nil, nil, err
	}
	rk, err := reg.RSA(a.cfg.Broker.KID)
	if err != nil {
		return nil, nil, fmt.Errorf("broker: %w", err)
	}
	ttl, err := config.Seconds(a.cfg.Broker.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("broker.ttl: %w", err)
	}

	vis := make([]passport.VisaIssuer, len(issuers))
	for i, s := range issuers {
		vis[i] = s
	}
	b := &passport.Broker{
		Issuer:    a.cfg.Broker.Issuer,
		KID:       a.cfg.Broker.KID,
		Key:       rk,
		Issuers:   vis,
		Audiences: a.cfg.Broker.Audiences,
		Signer:    passport.Signer{TTL: time.Duration(ttl) * time.Second},
	}
	return b, issuers, nil
}

func newPassportCmd(a *app) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "passport",
		Short: "Consulta a los emisores configurados y firma el pasaporte de --sub",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, _, err := a.broker()
			if err != nil {
				return err
			}
			tok, err := b.PassportFor(cmd.Context(), subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "sujeto")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
