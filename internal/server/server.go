// ABOUTME: Server orchestrator wiring the store, wallet, CA, and HTTP API
// ABOUTME: Manages component construction and graceful shutdown lifecycle

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/assetlink/ledger-gateway/internal/api"
	"github.com/assetlink/ledger-gateway/internal/auth"
	"github.com/assetlink/ledger-gateway/internal/ca"
	"github.com/assetlink/ledger-gateway/internal/config"
	"github.com/assetlink/ledger-gateway/internal/ledger"
	"github.com/assetlink/ledger-gateway/internal/store"
	"github.com/assetlink/ledger-gateway/internal/wallet"
)

// Server orchestrates the ledger-gateway components: the user store, the
// identity wallet, the CA client, and the HTTP API.
type Server struct {
	config     *config.Config
	store      store.UserStore
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	w, err := wallet.New(cfg.Fabric.WalletPath)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("initializing wallet: %w", err)
	}

	caClient := ca.New(cfg.Fabric.CAURL, cfg.Fabric.CAName)
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	accounts := auth.NewService(s, w, caClient, verifier, auth.EnrollmentConfig{
		MSPID:       cfg.Fabric.MSPID,
		AdminID:     cfg.Fabric.CAAdminID,
		AdminSecret: cfg.Fabric.CAAdminSecret,
		Affiliation: cfg.Fabric.Affiliation,
	}, cfg.Auth.TokenTTL)

	mux := http.NewServeMux()
	api.NewHandler(accounts, verifier, ledger.NewGateway(&cfg.Fabric, w)).Routes(mux)

	return &Server{
		config: cfg,
		store:  s,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "server"),
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
