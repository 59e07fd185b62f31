// Package server initializes and runs the todokeeper server: it opens the
// database, applies migrations, wires services into the HTTP router and
// runs the HTTP and gRPC health endpoints until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/logging"
	"github.com/dmitrijs2005/todokeeper/internal/server/auth"
	"github.com/dmitrijs2005/todokeeper/internal/server/config"
	"github.com/dmitrijs2005/todokeeper/internal/server/health"
	"github.com/dmitrijs2005/todokeeper/internal/server/httpx"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/todokeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client
	router *httpx.Router
	health *health.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, "todokeeper", slog.LevelInfo)

	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	store, err := app.sessionStore(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	sessions := auth.NewSessionManager(store, []byte(c.SecretKey), c.SessionValidityDuration)

	router, err := httpx.NewRouter(httpx.Options{
		Logger:         logger.With("module", "http"),
		Identity:       services.NewIdentityService(db, rm, c),
		Tasks:          services.NewTaskService(db, rm, loc),
		Sessions:       sessions,
		CSRFKey:        []byte(c.CSRFKey),
		SecureCookies:  c.SecureCookies,
		RequestTimeout: c.RequestTimeout,
		Location:       loc,
		DBHealth:       db.PingContext,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("router init error: %w", err)
	}
	app.router = router

	if c.EndpointAddrGRPCHealth != "" {
		app.health = health.NewServer(c.EndpointAddrGRPCHealth, logger, db.PingContext)
	}

	return app, nil
}

// sessionStore picks Redis when an address is configured and falls back to
// process memory otherwise.
func (app *App) sessionStore(ctx context.Context) (auth.SessionStore, error) {
	if app.config.RedisAddr == "" {
		app.logger.Warn(ctx, "no redis address configured, sessions are kept in memory")
		return auth.NewMemorySessionStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.redis = rdb
	return auth.NewRedisSessionStore(rdb), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.health != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHealthServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(context.Background(), "redis close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
}
