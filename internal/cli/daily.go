package cli

import (
	"github.com/spf13/cobra"

	"nickel-watch/internal/app"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Fetch daily bars, save CSV and run close-to-close alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Daily(cmd.Context())
	},
}

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Fetch macro indicators and save CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Macro(cmd.Context())
	},
}

var (
	reportFetch  bool
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the static HTML dashboard from stored data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Report(cmd.Context(), app.ReportOptions{
			Fetch:  reportFetch,
			Output: reportOutput,
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify API token, history access and data usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(cmd.Context())
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportFetch, "fetch", false, "Refresh daily and macro data before rendering")
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "Output HTML path (defaults to report.output)")
}
