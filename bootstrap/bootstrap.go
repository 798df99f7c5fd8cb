// Package bootstrap builds the portal app for the serverless entry point.
// api/ imports this package because Vercel functions cannot import internal/.
package bootstrap

import (
	"sync"

	"objektbetreuer-backend/internal/config"
	"objektbetreuer-backend/internal/interfaces/router"
	"objektbetreuer-backend/internal/pkg/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

var (
	once   sync.Once
	app    *fiber.App
	appErr error
)

// App returns the process-wide portal app, creating it on first use. A failed
// start is remembered so every request of a broken instance fails the same way.
func App() (*fiber.App, error) {
	once.Do(func() {
		app, appErr = New()
		if appErr != nil {
			log.Error().Err(appErr).Msg("bootstrap: portal app failed to start")
		}
	})
	return app, appErr
}

// New loads configuration and creates a fresh app.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.IsProduction())
	a, _, _, err := router.CreateApp(cfg)
	return a, err
}
