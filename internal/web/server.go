// Package web serves the PROXI HTTP API over the resolution service.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kwehner/mzusi/internal/log"
	"github.com/kwehner/mzusi/internal/resolve"
)

// NewServer creates and configures the PROXI HTTP server.
func NewServer(svc *resolve.Service, logger *log.Logger, version, bind string, port int) *http.Server {
	if logger == nil {
		logger = log.Nop()
	}

	h := &Handlers{
		svc:     svc,
		logger:  logger,
		version: version,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /proxi/v0.1/spectra", h.HandleSpectra)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.HandleFunc("POST /cache/invalidate", h.HandleInvalidate)

	handler := apiHeaders(mux)

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", bind, port),
		Handler: handler,
	}
}

// apiHeaders adds response headers common to all API routes.
func apiHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *log.Logger) error {
	if logger == nil {
		logger = log.Nop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sugar := logger.Sugar()
	sugar.Infof("PROXI endpoint listening at http://%s", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		sugar.Infof("WARNING: server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		sugar.Infof("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
