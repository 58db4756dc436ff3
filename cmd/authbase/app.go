package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authbase/internal/db"
	"github.com/nkiryanov/authbase/internal/handlers"
	"github.com/nkiryanov/authbase/internal/logger"
	"github.com/nkiryanov/authbase/internal/ratelimit"
	"github.com/nkiryanov/authbase/internal/repository"
	"github.com/nkiryanov/authbase/internal/repository/memory"
	"github.com/nkiryanov/authbase/internal/repository/postgres"
	"github.com/nkiryanov/authbase/internal/service/auth"
	"github.com/nkiryanov/authbase/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authbase/internal/service/email"
	"github.com/nkiryanov/authbase/internal/service/user"
)

const (
	shutdownTimeout  = 5 * time.Second
	redisPingTimeout = 5 * time.Second
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	sweeper *tokenmanager.Sweeper
	logger  logger.Logger

	// Release connections when server stopped
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (app *ServerApp, err error) {
	mode, err := c.Mode()
	if err != nil {
		return nil, fmt.Errorf("invalid config. Err: %w", err)
	}

	// Initialize logger
	l, err := logger.New(mode, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	app = &ServerApp{ListenAddr: c.ListenAddr, logger: l}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	storage, err := app.newStorage(ctx, c)
	if err != nil {
		return nil, err
	}

	counter, err := app.newCounter(ctx, c)
	if err != nil {
		return nil, err
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:        c.SecretKey,
		AccessTTL:        c.AccessTTL,
		RefreshTTL:       c.RefreshTTL,
		ResetPasswordTTL: c.ResetPasswordTTL,
		VerifyEmailTTL:   c.VerifyEmailTTL,
	}, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	var sender email.Sender = email.NewLogSender(l)
	if c.SMTPHost != "" {
		sender, err = email.NewSMTPSender(email.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.EmailFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("error while creating smtp sender. Err: %w", err)
		}
	}

	authService, err := auth.NewService(
		tokenManager,
		user.NewService(user.DefaultHasher, storage.User()),
		email.NewService(sender, c.AppURL),
		l,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	limiter, err := ratelimit.New(counter, ratelimit.Config{Window: c.RateLimitWindow, Max: c.RateLimitMax})
	if err != nil {
		return nil, fmt.Errorf("error while creating rate limiter. Err: %w", err)
	}

	app.Handler = handlers.NewRouter(handlers.RouterConfig{Mode: mode}, authService, limiter, l)
	app.sweeper = tokenmanager.NewSweeper(c.TokenCleanupInterval, storage.Token(), l)

	return app, nil
}

// Postgres if database configured, memory otherwise
func (s *ServerApp) newStorage(ctx context.Context, c *Config) (repository.Storage, error) {
	if c.DatabaseDSN == "" {
		s.logger.Warn("Database is not configured, users and tokens are kept in memory")
		return memory.NewStorage(), nil
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	s.closers = append(s.closers, pool.Close)

	return postgres.NewStorage(pool), nil
}

// Redis if configured, memory otherwise
func (s *ServerApp) newCounter(ctx context.Context, c *Config) (ratelimit.Counter, error) {
	if c.RedisAddr == "" {
		return ratelimit.NewMemoryCounter(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	s.closers = append(s.closers, func() { _ = client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis is not reachable. Err: %w", err)
	}

	return ratelimit.NewRedisCounter(client, ""), nil
}

func (s *ServerApp) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	return err
}
