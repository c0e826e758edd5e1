package cli

import (
	"github.com/spf13/cobra"

	"nickel-watch/internal/app"
)

var (
	runNoWatch bool
	runLive    bool
)

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"monitor"},
	Short:   "Run the realtime console monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Monitor(cmd.Context(), app.MonitorOptions{
			Live:  runLive,
			Watch: !runNoWatch,
		})
	},
}

var dashboardQuiet bool

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run the monitor and keep the realtime HTML page up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Monitor(cmd.Context(), app.MonitorOptions{
			Live:  true,
			Quiet: dashboardQuiet,
			Watch: !runNoWatch,
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runLive, "live", false, "Also write the realtime HTML page")
	runCmd.Flags().BoolVar(&runNoWatch, "no-watch", false, "Do not reload alert settings when the config file changes")
	dashboardCmd.Flags().BoolVar(&dashboardQuiet, "quiet", false, "Do not print the quote table")
	dashboardCmd.Flags().BoolVar(&runNoWatch, "no-watch", false, "Do not reload alert settings when the config file changes")
}
