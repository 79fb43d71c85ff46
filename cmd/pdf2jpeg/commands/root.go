// Package commands implements the pdf2jpeg command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/pdf2jpeg/cmd/pdf2jpeg/ui"
)

var (
	cfgFile   string
	verbose   bool
	noColor   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pdf2jpeg",
	Short: "Convert PDF pages to JPEG images named by barcode",
	Long: `pdf2jpeg renders every page of a PDF, enhances it, looks for a barcode
and saves the page as <barcode>.jpeg, or page_<n>.jpeg when none is found.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console or json)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
