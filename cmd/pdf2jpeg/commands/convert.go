package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf2jpeg/cmd/pdf2jpeg/ui"
	"github.com/spherical/pdf2jpeg/pkg/pdf2jpeg"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.pdf>",
	Short: "Save every page of a PDF as a JPEG",
	Long: `Render each page, enhance it, decode its barcode and save it to the
destination directory (or s3://bucket/prefix) as <barcode>.jpeg.
Pages without a barcode are saved as page_<n>.jpeg.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("output", "o", ".", "destination directory or s3://bucket/prefix")
	convertCmd.Flags().Int("dpi", 150, "rasterization resolution")
	convertCmd.Flags().Int("quality", 75, "JPEG quality (1-100)")
	convertCmd.Flags().Int("workers", 1, "pages enhanced and decoded in parallel")
	convertCmd.Flags().String("collision", "overwrite", "repeated barcode handling (overwrite or suffix)")
	convertCmd.Flags().Bool("manifest", false, "write manifest.yaml next to the images")
	convertCmd.Flags().Bool("keep-original", false, "save the unenhanced page instead of the enhanced one")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	client, err := pdf2jpeg.NewClientWithConfig(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	pdfPath := args[0]
	ui.Section("PDF to JPEG")
	ui.Info("PDF file: %s", pdfPath)
	ui.Info("Destination: %s", client.Destination())
	ui.Step("Resolution %d dpi, quality %d, workers %d", cfg.Render.DPI, cfg.Output.Quality, cfg.Pipeline.Workers)

	spinner := ui.NewSpinner(convertMessage(client, pdfPath))
	spinner.Start()
	session, err := client.Convert(ctx, pdfPath)
	spinner.Stop()
	if err != nil {
		return err
	}
	ui.Success("Converted %d pages", len(session.Pages))

	bar := ui.NewProgressBar(int64(len(session.Pages)), "Starting save process...")
	job := client.Save(ctx, session, pdf2jpeg.WithObserver(func(evt pdf2jpeg.StreamEvent) {
		switch evt.Type {
		case pdf2jpeg.EventPageProcessing:
			bar.Describe(fmt.Sprintf("Saving image %d of %d...", evt.PageNumber, evt.Total))
		case pdf2jpeg.EventPageComplete, pdf2jpeg.EventPageError:
			bar.Set(int64(evt.PageNumber))
		}
	}))

	result, err := job.Wait()
	bar.Finish()

	if job.State() == pdf2jpeg.StateCancelled {
		ui.Warning("Save cancelled")
		if result != nil {
			printSummary(result)
		}
		return err
	}
	if err != nil {
		return err
	}

	printSummary(result)
	if result.Failed > 0 {
		ui.Warning("%d of %d pages could not be saved", result.Failed, len(result.Outcomes))
	}
	ui.Success("Images saved successfully to %s (%s)", client.Destination(), ui.FormatDuration(result.Duration))
	return nil
}

func printSummary(result *pdf2jpeg.RunResult) {
	ui.Section("Summary")
	rows := make([][]string, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		barcode, status := "-", "saved"
		if o.Barcode != nil {
			barcode = fmt.Sprintf("%s (%s)", o.Barcode.Text, o.Barcode.Format)
		}
		if o.Err != nil {
			status = o.Err.Error()
		}
		rows = append(rows, []string{strconv.Itoa(o.Index + 1), o.FileName, barcode, status})
	}
	ui.Table([]string{"Page", "File", "Barcode", "Status"}, rows)
	ui.Newline()
}
