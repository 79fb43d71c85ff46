package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf2jpeg/cmd/pdf2jpeg/ui"
	"github.com/spherical/pdf2jpeg/pkg/pdf2jpeg"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file.pdf>",
	Short: "Print the barcode found on each page without saving images",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().Int("dpi", 150, "rasterization resolution")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// scan never writes, keep the sink local regardless of configuration
	cfg.Output.Destination = "."

	client, err := pdf2jpeg.NewClientWithConfig(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	spinner := ui.NewSpinner(convertMessage(client, args[0]))
	spinner.Start()
	session, err := client.Convert(ctx, args[0])
	spinner.Stop()
	if err != nil {
		return err
	}

	progress := ui.NewScanProgress("Decoding", int64(len(session.Pages)))
	rows := make([][]string, 0, len(session.Pages))
	found := 0
	for _, page := range session.Pages {
		if err := ctx.Err(); err != nil {
			progress.Close()
			return err
		}

		value, format := "-", "-"
		result, err := client.ScanPage(page)
		switch {
		case err != nil:
			value = "error: " + err.Error()
		case result != nil:
			value, format = result.Text, result.Format
			found++
		}
		rows = append(rows, []string{strconv.Itoa(page.PageNumber()), value, format})
		progress.Increment()
	}
	progress.Close()

	ui.Section("Barcodes")
	ui.Table([]string{"Page", "Value", "Format"}, rows)
	ui.Newline()
	ui.Success("Found barcodes on %d of %d pages", found, len(session.Pages))
	return nil
}
