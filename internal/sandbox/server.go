package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Addr        string  `mapstructure:"addr"`
	DatabaseURL string  `mapstructure:"database-url"`
	RateLimit   float64 `mapstructure:"rate-limit"`
	RateBurst   int     `mapstructure:"rate-burst"`
}

// NewRouter builds the gin engine serving the interview API.
func NewRouter(cfg Config, svc *Service, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		RequestID(),
		Logging(log),
		Recovery(log),
		RateLimit(cfg.RateLimit, cfg.RateBurst),
	)

	NewHandler(svc).Register(r)

	return r
}

// Serve runs the router on ln until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("sandbox listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("sandbox shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// OpenStore returns a Postgres store when databaseURL is set, running
// migrations first, and a memory store otherwise. The returned closer is never nil.
func OpenStore(ctx context.Context, databaseURL string, log *zap.Logger) (Store, func() error, error) {
	if databaseURL == "" {
		log.Info("using in-memory interview store")
		return NewMemoryStore(), func() error { return nil }, nil
	}

	db, err := Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info("using postgres interview store")
	return &PGStore{DB: db}, db.Close, nil
}
