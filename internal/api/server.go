// Package api provides the HTTP and gRPC surfaces of fundquant: quote
// lookup, search, history, analysis and backtests over JSON, the Analysis
// gRPC service, and the Prometheus scrape endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"fundquant/internal/config"
)

// Server hosts the HTTP and gRPC listeners.
type Server struct {
	httpAddr string
	grpcAddr string
	http     *http.Server
	grpc     *grpc.Server
	log      *slog.Logger
}

// NewServer creates a Server listening on the addresses in cfg. A zero gRPC
// port disables the gRPC listener.
func NewServer(cfg config.Server, handlers *Handlers, svc *GRPCService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		httpAddr: net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		log:      log.With("component", "server"),
	}
	s.http = &http.Server{
		Addr:              s.httpAddr,
		Handler:           handlers.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.GRPCPort > 0 && svc != nil {
		s.grpcAddr = net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.GRPCPort))
		s.grpc = grpc.NewServer()
		svc.RegisterGRPC(s.grpc)
	}
	return s
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs. Cancellation triggers a
// graceful shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lis net.Listener
	if s.grpc != nil {
		var err error
		if lis, err = net.Listen("tcp", s.grpcAddr); err != nil {
			return fmt.Errorf("grpc listen %s: %w", s.grpcAddr, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", s.httpAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	if lis != nil {
		g.Go(func() error {
			s.log.Info("gRPC server listening", "addr", s.grpcAddr)
			if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
