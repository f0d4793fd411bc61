package middleware

import (
	"net/http"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/config"
)

// NewCORS lets the till front-end call the API from another origin.
// Content-Disposition is exposed so receipt and statement downloads keep their filenames.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	allowCredentials := true
	for _, origin := range cfg.Server.CorsAllowedOrigins {
		if origin == "*" {
			// browsers reject credentialed requests to a wildcard origin
			allowCredentials = false
			break
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CorsAllowedOrigins,
		AllowedMethods:   cfg.Server.CorsAllowedMethods,
		AllowedHeaders:   cfg.Server.CorsAllowedHeaders,
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: allowCredentials,
		MaxAge:           600,
	})

	log.WithFields(log.Fields{
		"origins":     cfg.Server.CorsAllowedOrigins,
		"credentials": allowCredentials,
	}).Debug("[CORS] Configured")

	return c.Handler
}
