package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gospeldiary/internal/logger"
	"gospeldiary/internal/pipeline"
	"gospeldiary/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for previews and triggered runs",
		Long: `Start the gospeldiary web server.

The server provides:
  • GET  /health       health check
  • GET  /preview      the email for ?date=YYYY-MM-DD rendered as HTML, not sent
  • GET  /api/preview  the same delivery as JSON
  • POST /run          full run with email delivery (send ADMIN_API_KEY as X-API-Key)

Examples:
  # Start server on default port 8080
  gospeldiary serve

  # Start on custom port
  gospeldiary serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 127.0.0.1)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()

	// Override server config from flags if provided
	serverCfg := appConfig.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	builder := pipeline.NewBuilder(appConfig).WithLogger(log)
	if err := appConfig.ValidateEmail(); err != nil {
		log.Warn("Email is not configured, POST /run is disabled", "error", err)
		builder = builder.WithoutDelivery()
	}
	p, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	srv := server.New(p, serverCfg, appConfig.Location(), log)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Block until we receive our signal or an error from server
	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
			return err
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
