package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/emotion-check/internal/client"
	"github.com/kozaktomas/emotion-check/internal/config"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that a backend is reachable",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().String("backend-url", "", "Backend base URL (default from BACKEND_URL)")
	healthCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	backendURL := mustGetString(cmd, "backend-url")
	if backendURL == "" {
		backendURL = cfg.Client.BackendURL
	}

	c, err := client.New(backendURL, cfg.Client.Timeout)
	if err != nil {
		return err
	}

	health, err := c.Health(context.Background())
	if err != nil {
		return fmt.Errorf("backend %s is unavailable: %w", c.BaseURL(), err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(health)
	}

	fmt.Printf("Backend:    %s\n", c.BaseURL())
	fmt.Printf("Status:     %s\n", health.Status)
	fmt.Printf("Message:    %s\n", health.Message)
	if health.ClassifierAvailable {
		fmt.Printf("Classifier: %s\n", health.Classifier)
	} else {
		fmt.Printf("Classifier: %s (simulated scores)\n", health.Classifier)
	}
	fmt.Printf("Timestamp:  %s\n", health.Timestamp)
	return nil
}
