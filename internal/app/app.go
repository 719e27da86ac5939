package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/appointments/internal/config"
	"github.com/klokku/appointments/internal/tracing"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration, dependencies, router, and server lifecycle.
type Application struct {
	cfg      config.Application
	deps     *Dependencies
	router   *mux.Router
	srv      *http.Server
	shutdown func(context.Context) error
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(ctx context.Context, cfg config.Application) (*Application, error) {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	deps, err := BuildDependencies(ctx, cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	r := mux.NewRouter()

	// Middleware chain
	SetupMiddleware(r)

	// Routes
	RegisterRoutes(r, deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, deps: deps, router: r, srv: srv, shutdown: shutdownTracing}, nil
}

// Run starts the HTTP server and blocks until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		errCh <- a.srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		runErr = a.srv.Shutdown(shutdownCtx)
	}

	return errors.Join(runErr, a.Close())
}

// Close releases the dependencies and flushes pending traces.
func (a *Application) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(a.deps.Close(), a.shutdown(ctx))
}
