package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/matheuskafuri/trendscope/internal/config"
	"github.com/matheuskafuri/trendscope/internal/datalab"
	"github.com/matheuskafuri/trendscope/internal/export"
	"github.com/matheuskafuri/trendscope/internal/keywords"
	"github.com/matheuskafuri/trendscope/internal/pipeline"
	"github.com/matheuskafuri/trendscope/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagTrendStart  string
	flagTrendEnd    string
	flagTrendUnit   string
	flagTrendGroups []string
	flagTrendCSV    string
	flagTrendChart  string
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Fetch search-trend series for keyword groups",
	Long: `Fetch the relative search volume of one or more keyword groups and print it as a table.

Each --group is "name: keyword, keyword". Without --group the groups from the
config file are used. Dates default to the configured lookback ending today.`,
	Example: `  trendscope trend --group "chair: herman miller, aeron" --unit week
  trendscope trend --start 2025-01-01 --end 2025-03-31 --csv trend.csv --chart trend.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeLog()

		if !cfg.DataLabEnabled() {
			return datalab.ErrMissingCredentials
		}
		q, err := trendQuery(cfg, time.Now())
		if err != nil {
			return err
		}

		svc, err := pipeline.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		run, err := svc.Trend(cmd.Context(), q)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(run.Points) == 0 {
			fmt.Fprintln(out, "No trend data returned for these groups.")
			return nil
		}
		fmt.Fprintln(out, renderTrendTable(run.Points))

		if flagTrendCSV != "" {
			if err := writeFile(flagTrendCSV, func(w io.Writer) error {
				return export.WriteTrendCSV(w, run.Points)
			}); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", flagTrendCSV)
		}
		if flagTrendChart != "" {
			err := writeFile(flagTrendChart, func(w io.Writer) error {
				return export.RenderTrendPNG(w, run.Pivot())
			})
			switch {
			case errors.Is(err, export.ErrNotEnoughPoints):
				fmt.Fprintf(out, "Skipped chart: %v\n", err)
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "Wrote %s\n", flagTrendChart)
			}
		}

		recordRun(func(rec pipeline.Recorder) error {
			_, err := pipeline.RecordTrend(rec, run)
			return err
		})
		return nil
	},
}

func init() {
	trendCmd.Flags().StringVar(&flagTrendStart, "start", "", "first day, YYYY-MM-DD (default: today minus the configured lookback)")
	trendCmd.Flags().StringVar(&flagTrendEnd, "end", "", "last day, YYYY-MM-DD (default: today)")
	trendCmd.Flags().StringVar(&flagTrendUnit, "unit", "", "bucket size: date, week or month (default from config)")
	trendCmd.Flags().StringArrayVar(&flagTrendGroups, "group", nil, `keyword group "name: kw, kw" (repeatable)`)
	trendCmd.Flags().StringVar(&flagTrendCSV, "csv", "", "also write the series as CSV to this path")
	trendCmd.Flags().StringVar(&flagTrendChart, "chart", "", "also render a PNG line chart to this path")
}

// trendQuery resolves the flags against the config defaults.
func trendQuery(cfg *config.Config, now time.Time) (datalab.Query, error) {
	end := now
	if flagTrendEnd != "" {
		t, err := time.Parse(time.DateOnly, flagTrendEnd)
		if err != nil {
			return datalab.Query{}, fmt.Errorf("invalid --end: %w", err)
		}
		end = t
	}
	days := int(cfg.LookbackDuration().Hours() / 24)
	start := end.AddDate(0, 0, -days)
	if flagTrendStart != "" {
		t, err := time.Parse(time.DateOnly, flagTrendStart)
		if err != nil {
			return datalab.Query{}, fmt.Errorf("invalid --start: %w", err)
		}
		start = t
	}

	unit := datalab.TimeUnit(cfg.DataLab.TimeUnit)
	if flagTrendUnit != "" {
		unit = datalab.TimeUnit(flagTrendUnit)
	}
	if unit == "" {
		unit = datalab.UnitDate
	}

	text := cfg.DataLab.Groups
	if len(flagTrendGroups) > 0 {
		text = strings.Join(flagTrendGroups, "\n")
	}

	return datalab.Query{
		Start:  start,
		End:    end,
		Unit:   unit,
		Groups: keywords.Parse(text),
	}, nil
}

func renderTrendTable(points []datalab.Point) string {
	rows := make([][]string, len(points))
	for i, p := range points {
		rows[i] = []string{p.Period.Format(time.DateOnly), p.Title, fmt.Sprintf("%.5f", p.Ratio)}
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PERIOD", "GROUP", "RATIO").
		Rows(rows...).
		Render()
}

// writeFile writes to path, creating its directory.
func writeFile(path string, write func(io.Writer) error) error {
	_, err := export.ToFile(filepath.Dir(path), filepath.Base(path), write)
	return err
}

// recordRun saves a run to history. Failures are logged, never returned.
func recordRun(record func(pipeline.Recorder) error) {
	db, err := store.Open(config.HistoryPath())
	if err != nil {
		logrus.WithError(err).Warn("run history unavailable")
		return
	}
	defer db.Close()
	if err := record(db); err != nil {
		logrus.WithError(err).Warn("recording run failed")
	}
}
