package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/hellopassport/internal/keys"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newJWKSCmd(a *app) *cobra.Command {
	var kids []string
	cmd := &cobra.Command{
		Use:   "jwks",
		Short: "Imprime el JWKS público (todas las claves o --kid)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			if len(kids) > 0 {
				if reg, err = reg.Subset(kids...); err != nil {
					return err
				}
			}
			set, err := reg.PublicJWKS()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), set)
		},
	}
	cmd.Flags().StringSliceVar(&kids, "kid", nil, "kid a incluir (repetible)")
	return cmd
}

func newKeysCmd() *cobra.Command {
	keysCmd := &cobra.Command{Use: "keys", Short: "Material de claves"}

	var (
		kty  string
		kid  string
		bits int
		out  string
	)
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave nueva como definición YAML (kid: {...})",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kid == "" {
				return fmt.Errorf("--kid es requerido")
			}
			var def keys.Definition
			switch kty {
			case keys.KtyRSA:
				k, err := keys.GenerateRSA(kid, bits)
				if err != nil {
					return err
				}
				def = k.Definition()
			case keys.KtyOKP:
				k, err := keys.GenerateEd25519(kid)
				if err != nil {
					return err
				}
				def = k.Definition()
			default:
				return fmt.Errorf("%w: %q", keys.ErrUnsupportedKeyType, kty)
			}
			if out != "" {
				if err := keys.AppendToFile(out, kid, def); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s added to %s\n", kid, out)
				return nil
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(map[string]keys.Definition{kid: def})
		},
	}
	gen.Flags().StringVar(&kty, "kty", keys.KtyOKP, "RSA | OKP")
	gen.Flags().StringVar(&kid, "kid", "", "kid de la clave nueva")
	gen.Flags().IntVar(&bits, "bits", keys.MinRSABits, "tamaño RSA")
	gen.Flags().StringVar(&out, "out", "", "archivo de claves al que agregarla (en vez de stdout)")

	keysCmd.AddCommand(gen)
	return keysCmd
}
