package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/emotion-check/internal/config"
	"github.com/kozaktomas/emotion-check/internal/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "emotion-check",
	Short: "Capture webcam frames and detect the dominant emotion",
	Long: `Emotion Check captures ten frames from a camera, sends them to a backend
that classifies the facial emotion of every frame, and turns the averaged
result into wellbeing suggestions and a playful mind-age estimate.

Run "emotion-check serve" for the backend and browser capture page, or
"emotion-check capture" for a headless capture from the terminal.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a TOML config file (environment variables take precedence)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	if err := config.LoadFile(configFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Init(config.Load().Log)
}
