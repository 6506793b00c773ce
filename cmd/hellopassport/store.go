package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellopassport/internal/config"
	"github.com/dropDatabas3/hellopassport/internal/observability/logger"
	"github.com/dropDatabas3/hellopassport/internal/tokenstore"
)

func (a *app) openStore(cmd *cobra.Command) (*tokenstore.Store, error) {
	st, err := tokenstore.OpenStore(cmd.Context(), a.cfg.Store.TokenStore(),
		tokenstore.WithRevokePageSize(a.cfg.Store.RevokePageSize),
		tokenstore.WithLogger(logger.Named("tokenstore")),
	)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", a.cfg.Store.Driver, err)
	}
	return st, nil
}

func newStoreCmd(a *app) *cobra.Command {
	storeCmd := &cobra.Command{Use: "store", Short: "Operaciones sobre el token store"}

	var kind, id string
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Imprime el payload de <kind>-<id> (null si no existe o venció)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			p, err := st.Adapter(kind).Find(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	getCmd.Flags().StringVar(&kind, "kind", tokenstore.KindFixture, "kind del registro")
	getCmd.Flags().StringVar(&id, "id", "", "id del registro")
	_ = getCmd.MarkFlagRequired("id")

	var grantID string
	revokeCmd := &cobra.Command{
		Use:   "revoke-grant",
		Short: "Borra todos los registros con grantId",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			// el índice grantId no depende del kind
			return st.Adapter(tokenstore.KindGrant).RevokeByGrantID(cmd.Context(), grantID)
		},
	}
	revokeCmd.Flags().StringVar(&grantID, "grant", "", "grantId")
	_ = revokeCmd.MarkFlagRequired("grant")

	var (
		data    string
		ttl     string
		fixture string
	)
	seedCmd := &cobra.Command{
		Use:   "seed-fixture",
		Short: "Guarda un registro Fixture con --data JSON e imprime su id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload := tokenstore.Payload{}
			if data != "" {
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("--data: %w", err)
				}
			}
			secs, err := config.Seconds(ttl)
			if err != nil {
				return fmt.Errorf("--ttl: %w", err)
			}
			if fixture == "" {
				fixture = uuid.NewString()
			}
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Adapter(tokenstore.KindFixture).Upsert(cmd.Context(), fixture, payload, secs); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fixture)
			return nil
		},
	}
	seedCmd.Flags().StringVar(&data, "data", "{}", "payload JSON")
	seedCmd.Flags().StringVar(&ttl, "ttl", "", "vida del registro; vacío = sin vencimiento")
	seedCmd.Flags().StringVar(&fixture, "id", "", "id; por defecto un UUID nuevo")

	storeCmd.AddCommand(getCmd, revokeCmd, seedCmd)
	return storeCmd
}
