package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/emotion-check/internal/capture"
	"github.com/kozaktomas/emotion-check/internal/client"
	"github.com/kozaktomas/emotion-check/internal/config"
	"github.com/kozaktomas/emotion-check/internal/constants"
	"github.com/kozaktomas/emotion-check/internal/orchestrator"
	"github.com/kozaktomas/emotion-check/internal/render"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture frames and analyze them against a backend",
	Long: `Capture ten frames from a frame source, upload them to the backend and
print the per-frame emotions, the averaged distribution and the
recommendations.

Frames are read from --frames-dir (jpg, png, bmp or webp files, cycled in
name order). Without a directory, or when the directory cannot be opened,
a synthetic camera is used.

Examples:
  emotion-check capture --frames-dir ./faces
  emotion-check capture --synthetic --backend-url http://localhost:5000
  emotion-check capture --frames-dir ./faces --interval 200ms --json`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("frames-dir", "", "Directory of images used as camera frames")
	captureCmd.Flags().Bool("synthetic", false, "Use the synthetic camera only")
	captureCmd.Flags().String("backend-url", "", "Backend base URL (default from BACKEND_URL)")
	captureCmd.Flags().Duration("interval", constants.CaptureInterval, "Delay between frames")
	captureCmd.Flags().Int("retries", 0, "Retry a failed analysis this many times")
	captureCmd.Flags().Bool("json", false, "Output the result as JSON")
}

// captureCamera builds the frame source chain from the flags.
func captureCamera(framesDir string, synthetic bool) capture.Camera {
	var cameras []capture.Camera
	if framesDir != "" && !synthetic {
		cameras = append(cameras, &capture.DirectoryCamera{Dir: framesDir})
	}
	cameras = append(cameras, &capture.SyntheticCamera{})
	return &capture.FallbackCamera{Cameras: cameras}
}

// newCaptureProgressBar returns nil when the output is JSON or not a terminal.
func newCaptureProgressBar(total int, jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput || !isatty.IsTerminal(os.Stdout.Fd()) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Capturing frames"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	backendURL := mustGetString(cmd, "backend-url")
	if backendURL == "" {
		backendURL = cfg.Client.BackendURL
	}
	jsonOutput := mustGetBool(cmd, "json")
	retries := mustGetInt(cmd, "retries")

	c, err := client.New(backendURL, cfg.Client.Timeout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := newCaptureProgressBar(constants.FramesPerSession, jsonOutput)
	ctrl := capture.NewController(c, captureCamera(mustGetString(cmd, "frames-dir"), mustGetBool(cmd, "synthetic")),
		capture.Options{
			Interval: mustGetDuration(cmd, "interval"),
			OnFrame: func(captured, _ int) {
				if bar != nil {
					_ = bar.Set(captured)
				}
			},
			OnFrameError: func(attempt int, err error) {
				if !jsonOutput {
					fmt.Printf("\nFrame capture failed (attempt %d): %v\n", attempt, err)
				}
			},
		})
	defer ctrl.Close()

	if err := ctrl.CheckBackend(ctx); err != nil {
		return fmt.Errorf("%s: %w", ctrl.Status(), err)
	}
	if err := ctrl.StartCamera(ctx); err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("%s, backend %s\n", ctrl.Status(), c.BaseURL())
	}

	if err := ctrl.StartCapture(ctx); err != nil {
		return err
	}
	if err := ctrl.Wait(ctx); err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	result, err := analyzeWithRetries(ctx, ctrl, retries, jsonOutput)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}
	fmt.Printf("\nSession %s\n\n", result.SessionID)
	fmt.Print(render.Analysis(result.Analysis))
	fmt.Println()
	fmt.Print(render.Recommendations(result.Recommendations))
	return nil
}

func analyzeWithRetries(ctx context.Context, ctrl *capture.Controller, retries int, jsonOutput bool) (*orchestrator.Result, error) {
	for attempt := 0; ; attempt++ {
		if !jsonOutput {
			fmt.Println("Analyzing...")
		}
		result, err := ctrl.Analyze(ctx)
		if err == nil {
			return result, nil
		}
		var stepErr *orchestrator.StepError
		if attempt >= retries || !errors.As(err, &stepErr) {
			return nil, err
		}
		if !jsonOutput {
			fmt.Printf("%v, retrying\n", err)
		}
	}
}

// outputJSON writes data as indented JSON to stdout.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
