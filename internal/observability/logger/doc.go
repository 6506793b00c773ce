// Package logger expone el logger zap del proceso.
//
// Una única instancia global se construye con Init (normalmente desde el
// PersistentPreRun del CLI). Los componentes piden un hijo con Named y
// los handlers HTTP propagan un logger con campos del request via
// ToContext / From.
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
//	defer logger.Sync()
//
//	log := logger.Named("visa")
//	log.Debug("compact visa signed", logger.KID(kid), logger.Bytes(len(v)))
//
// En "prod" se emite JSON; cualquier otro valor usa consola con colores.
package logger
