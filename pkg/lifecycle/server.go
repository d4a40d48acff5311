package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/logger"
)

const (
	ShutdownTimeout   = 10 * time.Second
	ReadHeaderTimeout = 10 * time.Second
)

// Service defines the interface that all services must implement.
type Service interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// ServerOptions holds configuration for creating a server.
type ServerOptions struct {
	ListenAddr  string
	ServiceName string
	Handler     http.Handler
	Services    []Service
	Logger      *logger.Logger

	// ready, when set, receives the bound address once the listener is open.
	ready func(addr string)
}

// RunServer starts the supporting services, then serves HTTP until a signal,
// a server error or ctx cancellation, and shuts everything down in reverse.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	log.Info("Starting service", "service", opts.ServiceName)

	started := make([]Service, 0, len(opts.Services))

	for _, svc := range opts.Services {
		if err := svc.Start(ctx); err != nil {
			stopServices(log, started)

			return fmt.Errorf("failed to start service: %w", err)
		}

		started = append(started, svc)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", opts.ListenAddr)
	if err != nil {
		stopServices(log, started)

		return fmt.Errorf("failed to listen on %s: %w", opts.ListenAddr, err)
	}

	if opts.ready != nil {
		opts.ready(listener.Addr().String())
	}

	server := &http.Server{
		Handler:           opts.Handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	errChan := make(chan error, 1)

	go func() {
		log.Info("HTTP server listening", "addr", listener.Addr().String())

		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	return handleShutdown(ctx, log, server, started, errChan)
}

func handleShutdown(
	ctx context.Context, log *logger.Logger, server *http.Server, services []Service, errChan chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(sigChan)

	var runErr error

	select {
	case sig := <-sigChan:
		log.Info("Received signal, initiating shutdown", "signal", sig.String())
	case err := <-errChan:
		log.Error("Server error, initiating shutdown", "error", err)

		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("Context canceled, initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during HTTP shutdown", "error", err)

		if runErr == nil {
			runErr = fmt.Errorf("shutdown error: %w", err)
		}
	}

	stopServices(log, services)

	return runErr
}

// stopServices stops services in reverse start order.
func stopServices(log *logger.Logger, services []Service) {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil {
			log.Error("Error during service shutdown", "error", err)
		}
	}
}
