package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf2jpeg/internal/config"
	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/spherical/pdf2jpeg/internal/naming"
	"github.com/spherical/pdf2jpeg/internal/observability"
	"github.com/spherical/pdf2jpeg/pkg/pdf2jpeg"
)

// loadConfig reads the config file and applies flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("dpi") {
		cfg.Render.DPI, _ = flags.GetInt("dpi")
	}
	if flags.Changed("output") {
		cfg.Output.Destination, _ = flags.GetString("output")
	}
	if flags.Changed("quality") {
		cfg.Output.Quality, _ = flags.GetInt("quality")
	}
	if flags.Changed("workers") {
		cfg.Pipeline.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("collision") {
		v, _ := flags.GetString("collision")
		cfg.Output.Collision = naming.Policy(v)
	}
	if flags.Changed("manifest") {
		cfg.Output.Manifest, _ = flags.GetBool("manifest")
	}
	if flags.Changed("keep-original") {
		cfg.Output.KeepOriginal, _ = flags.GetBool("keep-original")
	}
	if logFormat != "" {
		cfg.Observability.LogFormat = logFormat
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}

	return cfg, nil
}

func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		Output:      os.Stderr,
		ServiceName: "pdf2jpeg",
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Describe turns a command error into the message shown to the user.
func Describe(err error) string {
	switch {
	case domain.IsType(err, domain.ErrorTypeMemory):
		return fmt.Sprintf("Memory error: %v. Try again with a lower --dpi.", err)
	case domain.IsType(err, domain.ErrorTypeConversion):
		return fmt.Sprintf("Error converting PDF: %v", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// convertMessage is the spinner text shown while pages are rendered.
func convertMessage(client *pdf2jpeg.Client, pdfPath string) string {
	n, err := client.PageCount(pdfPath)
	if err != nil {
		return "Converting PDF to images..."
	}
	return fmt.Sprintf("Converting %d pages to images...", n)
}
