package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/authbackend/oidcbackend"
	"github.com/jrsteele09/brandbolt/internal/config"
	"github.com/jrsteele09/brandbolt/internal/logger"
	"github.com/jrsteele09/brandbolt/loginsession"
	"github.com/jrsteele09/brandbolt/pendingpath"
	"github.com/jrsteele09/brandbolt/server"
	"github.com/jrsteele09/brandbolt/server/authflowrepo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logger.Init(c.GetLogLevel(), c.GetLogFormat())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := oidcbackend.NewProvider(ctx, oidcbackend.Config{
		IssuerURL:     c.GetIssuerURL(),
		ClientID:      c.GetClientID(),
		ClientSecret:  c.GetClientSecret(),
		RedirectURL:   c.GetBaseURL() + server.RouteCallback,
		AccountAPIURL: c.GetAccountAPIURL(),
		Scopes:        c.GetOAuthScopes(),
		Timeout:       c.GetBackendTimeout(),
	})
	if err != nil {
		return fmt.Errorf("oidc provider: %w", err)
	}

	pending, closePending, err := newPendingRepo(ctx, c)
	if err != nil {
		return err
	}
	defer closePending()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions := loginsession.NewInMemoryRepo()
	srv, err := server.New(c, server.Deps{
		Backends: func(clientID string) authbackend.Client {
			return provider.ClientFor(clientID, sessions)
		},
		AuthFlows: authflowrepo.NewInMemoryRepo(c.GetAuthFlowTimeout()),
		Pending:   pending,
		Registry:  reg,
	})
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	defer srv.Clients().Close()
	go srv.Clients().Run(ctx)

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

// newPendingRepo uses Redis when REDIS_URL is set so pre-auth paths survive restarts and
// are shared between replicas.
func newPendingRepo(ctx context.Context, c config.Config) (pendingpath.Repo, func(), error) {
	ttl := c.GetAuthFlowTimeout()
	url := c.GetRedisURL()
	if url == "" {
		log.Info().Msg("pending redirect paths kept in memory")
		return pendingpath.NewInMemoryRepo(ttl), func() {}, nil
	}

	client, err := pendingpath.NewRedisClient(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	log.Info().Msg("pending redirect paths kept in redis")
	return pendingpath.NewRedisRepo(client, ttl), func() { _ = client.Close() }, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
