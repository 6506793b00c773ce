// Command hellopassport firma visas y pasaportes GA4GH y administra el
// token store del broker.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellopassport/internal/config"
	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/observability/logger"

	// drivers del token store
	_ "github.com/dropDatabas3/hellopassport/internal/tokenstore/dynamo"
	_ "github.com/dropDatabas3/hellopassport/internal/tokenstore/memory"
	_ "github.com/dropDatabas3/hellopassport/internal/tokenstore/pg"
	_ "github.com/dropDatabas3/hellopassport/internal/tokenstore/redis"
)

// app guarda flags globales y lo que se carga una sola vez por proceso.
type app struct {
	configPath string
	envFile    string
	keysFile   string

	cfg *config.Config
	reg *keys.Registry
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	if a.envFile != "" && fileExists(a.envFile) {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("dotenv %s: %w", a.envFile, err)
		}
	}

	var err error
	if a.configPath != "" {
		a.cfg, err = config.Load(a.configPath)
	} else {
		// sin archivo: defaults + env
		a.cfg, err = config.Parse(nil)
	}
	if err != nil {
		return err
	}
	if a.keysFile != "" {
		a.cfg.Keys.File = a.keysFile
	}

	logger.Init(logger.Config{
		Env:         a.cfg.App.Env,
		Level:       a.cfg.Log.Level,
		ServiceName: a.cfg.App.ServiceName,
	})
	return nil
}

// registry carga las claves de keys.file o las demo embebidas.
func (a *app) registry() (*keys.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}
	var err error
	if a.cfg.Keys.File == "" {
		if a.cfg.App.Env == "prod" {
			return nil, fmt.Errorf("keys.file is required in prod")
		}
		logger.Named("cli").Warn("using embedded demo keys")
		a.reg, err = keys.DemoRegistry()
	} else {
		a.reg, err = keys.LoadFile(a.cfg.Keys.File)
	}
	return a.reg, err
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "hellopassport",
		Short:             "Firma de visas/pasaportes GA4GH y token store OIDC",
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("HELLOPASSPORT_CONFIG"), "ruta a config YAML (env HELLOPASSPORT_CONFIG)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "ruta a .env (se ignora si no existe)")
	root.PersistentFlags().StringVar(&a.keysFile, "keys", "", "archivo de claves; pisa keys.file")

	root.AddCommand(
		newJWKSCmd(a),
		newKeysCmd(),
		newVisaCmd(a),
		newPassportCmd(a),
		newStoreCmd(a),
		newServeCmd(a),
	)
	return root
}

func main() { os.Exit(run(os.Args[1:])) }

func run(args []string) int {
	defer func() { _ = logger.Sync() }()
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
