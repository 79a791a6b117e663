package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/emotion-check/internal/ai"
	"github.com/kozaktomas/emotion-check/internal/analysis"
	"github.com/kozaktomas/emotion-check/internal/config"
	"github.com/kozaktomas/emotion-check/internal/metrics"
	"github.com/kozaktomas/emotion-check/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Emotion Check backend.
The server exposes the REST API used by capture clients and serves the
browser capture page on the same port.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT or 5000)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST or 0.0.0.0)")
}

// applyServeFlags lets explicit flags override the configured listen address.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
}

// closer is implemented by classifiers holding a connection, such as MQTT.
type closer interface {
	Close()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	classifier, err := ai.NewClassifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}
	if c, ok := classifier.(closer); ok {
		defer c.Close()
	}
	if classifier.Real() {
		fmt.Printf("Using %s classifier\n", classifier.Name())
	} else {
		fmt.Printf("No classifier configured, emotions will be simulated\n")
	}

	m := metrics.New()
	service := analysis.NewService(store, classifier, m, cfg)
	server := web.NewServer(cfg, service, m)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Emotion Check on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
