package httpserver

import (
	"net/http"
	"time"

	"sherlock/internal/platform/config"
)

// New builds the HTTP server. The decision pipeline enforces its own
// deadline, so the write timeout only bounds stuck clients.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       90 * time.Second,
		MaxHeaderBytes:    16 << 10,
	}
}
