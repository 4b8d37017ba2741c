package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/matheuskafuri/trendscope/internal/config"
	"github.com/matheuskafuri/trendscope/internal/logging"
	"github.com/matheuskafuri/trendscope/internal/update"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig string
	flagMode   string
)

var rootCmd = &cobra.Command{
	Use:   "trendscope",
	Short: "Search-trend and video statistics dashboard",
	Long: `trendscope queries the Naver DataLab search-trend API and the YouTube Data API
and shows the results as tables and charts in the terminal.

Run without a subcommand to open the dashboard.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.Flags().StringVar(&flagMode, "mode", "trend", "starting view: trend or video")

	versionCmd.Flags().BoolVar(&flagVersionCheck, "check", false, "check for a newer release")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(videoCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
}

var flagVersionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "trendscope %s (commit: %s, built: %s)\n", version, commit, date)
		if !flagVersionCheck {
			return nil
		}
		res, err := update.Checker{}.Check(cmd.Context(), version)
		if err != nil {
			return err
		}
		if res == nil {
			fmt.Fprintln(out, "You are on the latest release.")
			return nil
		}
		fmt.Fprintf(out, "Version %s is available: %s\n", res.LatestVersion, res.URL)
		return nil
	},
}

// setup loads the config and points the logger at out, or at the log file when out is nil.
// The returned func closes the log file.
func setup(out io.Writer) (*config.Config, func(), error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if out != nil {
		logging.Init(cfg.LogLevel, out)
		return cfg, func() {}, nil
	}

	f, err := logging.OpenFile(config.LogPath())
	if err != nil {
		// The dashboard owns the terminal, so logs are dropped rather than drawn over it.
		logging.Init(cfg.LogLevel, io.Discard)
		return cfg, func() {}, nil
	}
	logging.Init(cfg.LogLevel, f)
	return cfg, func() { f.Close() }, nil
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
