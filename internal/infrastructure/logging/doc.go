// Package logging builds the process zap logger from LOG_LEVEL, LOG_DEV and
// LOG_OUTPUT. Production writes JSON; development writes colored console
// lines at debug level. The level stays adjustable at runtime through
// SetLevel or the HTTP handler from LevelHandler.
//
//	logger, err := logging.New(cfg.Logging)
//	logger.Panel(id).Warn("render failed", zap.Error(err))
package logging
