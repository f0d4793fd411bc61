package logging

import (
	"os"

	log "github.com/sirupsen/logrus"

	"pos-backend/internal/config"
)

// Setup configures the package-level logrus logger.
func Setup(cfg *config.Config) {
	if cfg.Log.Format == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.WithField("level", cfg.Log.Level).Warn("[Logging] Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
