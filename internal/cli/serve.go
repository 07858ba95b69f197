package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/picmigrate/picmigrate/internal/api"
	"github.com/picmigrate/picmigrate/internal/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the PicMigrate server",
	Long: `Start the PicMigrate HTTP server.

The server exposes the OAuth authorization flow for both Bling accounts
and the migration batch API.

Example:
  picmigrate serve --config config.yaml

The server will start listening on the address configured in the config file.`,
	RunE: runServe,
}

var serveFlags struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// configWatchInterval is how often the config file is polled for edits.
const configWatchInterval = 30 * time.Second

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", envDuration("SHUTDOWN_TIMEOUT", 30*time.Second), "Shutdown timeout")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting PicMigrate server...")
		log.Printf("Config path: %s", globalFlags.Config)
	}

	application, err := buildApp(globalFlags.Config)
	if err != nil {
		return err
	}
	defer application.Close()

	cfg := application.config
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}

	server := api.NewServer(
		cfg.Server, cfg.API,
		application.authorizer,
		application.tokens,
		application.orchestrator,
		application.history,
		application.journal,
		application.metrics,
		application.logger,
	)

	// Watch the config file so edits are validated and picked up without a
	// restart. Accounts and listen address still need one; a reload only
	// refreshes what is read per request.
	application.loader.SetOnChange(func(next *config.Config) {
		application.logger.Info("configuration reloaded",
			"path", globalFlags.Config,
			"accounts", len(next.Accounts),
		)
	})
	application.loader.StartWatcher(configWatchInterval)

	// Log token file changes made outside this process, e.g. a manual reset.
	watchCtx, watchCancel := context.WithCancel(context.Background())
	go func() {
		if err := application.tokens.Watch(watchCtx, func(account string) {
			application.logger.Info("credential file changed on disk", "account", account)
		}); err != nil {
			application.logger.Warn("token watcher stopped", "error", err)
		}
	}()

	setupGracefulShutdown(server, func() {
		watchCancel()
		application.loader.StopWatcher()
	}, serveFlags.Timeout)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	log.Printf("Starting PicMigrate HTTP server on %s", addr)
	log.Printf("Storage root: %s", cfg.Storage.Root)

	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// setupGracefulShutdown handles graceful shutdown of all components
func setupGracefulShutdown(server *api.Server, stopWatchers func(), timeout time.Duration) {
	sigChan := api.SetupSignalHandler()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)

		log.Println("Shutting down API server...")
		if err := server.ShutdownWithTimeout(timeout); err != nil {
			log.Printf("Error during server shutdown: %v", err)
		}
		stopWatchers()

		log.Println("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
