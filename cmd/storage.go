package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/matheuskafuri/trendscope/internal/config"
	"github.com/matheuskafuri/trendscope/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagPruneOlderThan string
	flagHistoryLimit   int
	flagHistoryKind    string
	flagHistoryRun     string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent query runs",
	Long: `List recorded trend and video runs, newest first.

With --run, print the video rows stored for that run instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, closeLog, err := setup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeLog()

		db, err := store.Open(config.HistoryPath())
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer db.Close()

		out := cmd.OutOrStdout()
		if flagHistoryRun != "" {
			videos, err := db.RunVideos(flagHistoryRun)
			if err != nil {
				return fmt.Errorf("reading run %s: %w", flagHistoryRun, err)
			}
			if len(videos) == 0 {
				fmt.Fprintln(out, "No stored videos for that run.")
				return nil
			}
			rows := make([][]string, len(videos))
			for i, v := range videos {
				rows[i] = []string{fmt.Sprint(v.Position + 1), v.Title, fmt.Sprint(v.ViewCount), fmt.Sprintf("%.6f", v.LikeRatio), v.URL}
			}
			fmt.Fprintln(out, table.New().
				Border(lipgloss.NormalBorder()).
				Headers("#", "TITLE", "VIEWS", "LIKE/VIEW", "URL").
				Rows(rows...).
				Render())
			return nil
		}

		kind := store.Kind(flagHistoryKind)
		if kind != "" && kind != store.KindTrend && kind != store.KindVideo {
			return fmt.Errorf("invalid --kind %q (want trend or video)", flagHistoryKind)
		}
		runs, err := db.Runs(store.QueryOpts{Kind: kind, Limit: flagHistoryLimit})
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded yet.")
			return nil
		}
		fmt.Fprintln(out, renderRuns(runs))
		return nil
	},
}

func renderRuns(runs []store.Run) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.RanAt.Local().Format("2006-01-02 15:04"),
			string(r.Kind),
			r.Label,
			fmt.Sprintf("%d/%d", r.Kept, r.Fetched),
			r.ID,
		}
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RAN AT", "KIND", "QUERY", "SHOWN/FETCHED", "ID").
		Rows(rows...).
		Render()
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old runs from the history database",
	Long: `Delete recorded runs older than the retention period and reclaim disk space.

Uses the retention value from config (default: 90d) unless overridden with --older-than.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeLog()

		db, err := store.Open(config.HistoryPath())
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer db.Close()

		retention := cfg.RetentionDuration()
		if flagPruneOlderThan != "" {
			d, err := parseSince(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}

		deleted, err := db.Prune(retention)
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}

		out := cmd.OutOrStdout()
		if deleted == 0 {
			fmt.Fprintln(out, "Nothing to prune.")
		} else {
			fmt.Fprintf(out, "Pruned %d run(s) older than %s.\n", deleted, formatDuration(retention))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.HistoryPath()
		db, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer db.Close()

		count, size, err := db.Stats(dbPath)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "History: %s\n", dbPath)
		fmt.Fprintf(out, "Runs: %d\n", count)
		fmt.Fprintf(out, "Size: %s\n", formatBytes(size))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().StringVar(&flagHistoryKind, "kind", "", "only show trend or video runs")
	historyCmd.Flags().StringVar(&flagHistoryRun, "run", "", "show the stored videos of one run id")
	pruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override retention period (e.g., 30d, 720h)")
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
