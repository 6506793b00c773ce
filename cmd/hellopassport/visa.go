package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellopassport/internal/config"
	jwtx "github.com/dropDatabas3/hellopassport/internal/jwt"
	"github.com/dropDatabas3/hellopassport/internal/visa"
)

type visaFlags struct {
	kid     string
	issuer  string
	subject string
	ttl     string
}

func (f *visaFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kid, "kid", "", "kid de la clave de firma")
	cmd.Flags().StringVar(&f.issuer, "issuer", "", "iss de la visa")
	cmd.Flags().StringVar(&f.subject, "sub", "", "sujeto")
	cmd.Flags().StringVar(&f.ttl, "ttl", "1h", "duración (Go duration)")
	_ = cmd.MarkFlagRequired("kid")
	_ = cmd.MarkFlagRequired("sub")
}

func newVisaCmd(a *app) *cobra.Command {
	visaCmd := &cobra.Command{Use: "visa", Short: "Firma y verifica visas"}

	var (
		jf     visaFlags
		claims string
		object visa.Object
	)
	jwtCmd := &cobra.Command{
		Use:   "jwt",
		Short: "Firma una visa JWT (RSA)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			ttl, err := config.Seconds(jf.ttl)
			if err != nil {
				return fmt.Errorf("--ttl: %w", err)
			}
			extra := map[string]any{}
			if claims != "" {
				if err := json.Unmarshal([]byte(claims), &extra); err != nil {
					return fmt.Errorf("--claims: %w", err)
				}
			}
			if object.Type != "" {
				for k, v := range object.Claims() {
					extra[k] = v
				}
			}
			tok, err := visa.SignJWTVisaWithKID(reg, jf.issuer, jf.kid, jf.subject, ttl, extra)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	jf.bind(jwtCmd)
	jwtCmd.Flags().StringVar(&claims, "claims", "", "claims extra en JSON")
	jwtCmd.Flags().StringVar(&object.Type, "type", "", "ga4gh_visa_v1.type (ej. ControlledAccessGrants)")
	jwtCmd.Flags().StringVar(&object.Value, "value", "", "ga4gh_visa_v1.value")
	jwtCmd.Flags().StringVar(&object.Source, "source", "", "ga4gh_visa_v1.source")
	jwtCmd.Flags().StringVar(&object.By, "by", "", "ga4gh_visa_v1.by")
	jwtCmd.Flags().Int64Var(&object.Asserted, "asserted", 0, "ga4gh_visa_v1.asserted (unix)")

	var (
		cf         visaFlags
		assertions []string
	)
	compactCmd := &cobra.Command{
		Use:   "compact",
		Short: "Firma una visa compacta (Ed25519) e imprime su JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			ttl, err := config.Seconds(cf.ttl)
			if err != nil {
				return fmt.Errorf("--ttl: %w", err)
			}
			cv, err := visa.SignCompactVisaWithKID(reg, cf.issuer, cf.kid, cf.subject, ttl, assertions)
			if err != nil {
				return err
			}
			out, err := cv.Encode()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cf.bind(compactCmd)
	compactCmd.Flags().StringArrayVarP(&assertions, "assert", "a", nil, "afirmación k:v (repetible)")

	var verifyIssuer string
	verifyCmd := &cobra.Command{
		Use:   "verify <visa>",
		Short: "Verifica una visa JWT o compacta contra las claves cargadas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			raw := strings.TrimSpace(args[0])

			if strings.HasPrefix(raw, "{") {
				cv, err := visa.DecodeCompactVisa(raw)
				if err != nil {
					return err
				}
				ek, err := reg.Ed25519(cv.K)
				if err != nil {
					return err
				}
				pub, err := ek.PublicKey()
				if err != nil {
					return err
				}
				if err := visa.VerifyCompactVisa(cv, pub); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"kid":        cv.K,
					"issuer":     cv.I,
					"assertions": cv.Assertions(),
				})
			}

			set, err := reg.PublicJWKS()
			if err != nil {
				return err
			}
			v, err := jwtx.ParseRSA(raw, set, jwtx.ParseOptions{Issuer: verifyIssuer})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	verifyCmd.Flags().StringVar(&verifyIssuer, "issuer", "", "iss esperado (solo JWT)")

	visaCmd.AddCommand(jwtCmd, compactCmd, verifyCmd)
	return visaCmd
}
