package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/matheuskafuri/trendscope/internal/config"
	"github.com/matheuskafuri/trendscope/internal/engage"
	"github.com/matheuskafuri/trendscope/internal/export"
	"github.com/matheuskafuri/trendscope/internal/pipeline"
	"github.com/matheuskafuri/trendscope/internal/youtube"
	"github.com/spf13/cobra"
)

var (
	flagVideoKeyword string
	flagVideoMonths  int
	flagVideoOrder   string
	flagVideoCSV     string
	flagVideoCSVDir  bool
)

var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Collect videos for a keyword with engagement ratios",
	Long: `Search every video matching a keyword published in the last N months, then
print those with at least the configured minimum views, newest first, with
like/view and comment/view ratios.`,
	Example: `  trendscope video --keyword "herman miller aeron" --months 3
  trendscope video --order viewCount --export`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeLog()

		if cfg.YouTubeKey() == "" {
			return youtube.ErrMissingKey
		}
		q, err := videoQuery(cfg, time.Now())
		if err != nil {
			return err
		}

		svc, err := pipeline.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		run, err := svc.Video(cmd.Context(), q)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "keyword %s  shown %d  fetched %d  window %s → %s\n",
			q.Keyword, run.Summary.Kept, run.Summary.Fetched, q.PublishedAfter, q.PublishedBefore)
		if run.Truncated {
			fmt.Fprintf(out, "Stopped after %d pages; results are incomplete.\n", run.Pages)
		}
		if len(run.Rows) > 0 {
			fmt.Fprintln(out, renderVideoTable(run.Rows))
		}

		path := flagVideoCSV
		if path == "" && flagVideoCSVDir {
			path = filepath.Join(cfg.ExportDirectory(), export.FileName(q.Keyword, time.Now()))
		}
		if path != "" {
			if err := writeFile(path, func(w io.Writer) error {
				return export.WriteCSV(w, run.Rows)
			}); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", path)
		}

		recordRun(func(rec pipeline.Recorder) error {
			_, err := pipeline.RecordVideo(rec, run)
			return err
		})
		return nil
	},
}

func init() {
	videoCmd.Flags().StringVar(&flagVideoKeyword, "keyword", "", "search keyword (default from config)")
	videoCmd.Flags().IntVar(&flagVideoMonths, "months", 0, "months back from today, 1-24 (default from config)")
	videoCmd.Flags().StringVar(&flagVideoOrder, "order", "", "date, relevance or viewCount (default from config)")
	videoCmd.Flags().StringVar(&flagVideoCSV, "csv", "", "write the table as CSV to this path")
	videoCmd.Flags().BoolVar(&flagVideoCSVDir, "export", false, "write the CSV to the export directory with the standard name")
}

func videoQuery(cfg *config.Config, now time.Time) (youtube.Query, error) {
	keyword := cfg.YouTube.Keyword
	if flagVideoKeyword != "" {
		keyword = flagVideoKeyword
	}
	months := cfg.GetMonths()
	if flagVideoMonths != 0 {
		months = flagVideoMonths
	}
	order := youtube.Order(cfg.YouTube.Order)
	if flagVideoOrder != "" {
		order = youtube.Order(flagVideoOrder)
	}
	if order == "" {
		order = youtube.OrderDate
	}

	after, before, err := youtube.Window(now, months)
	if err != nil {
		return youtube.Query{}, err
	}
	q := youtube.Query{
		Keyword:         strings.TrimSpace(keyword),
		Order:           order,
		PublishedAfter:  after,
		PublishedBefore: before,
	}
	return q, q.Validate()
}

func renderVideoTable(rows []engage.Row) string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		published := "-"
		if !r.PublishedAt.IsZero() {
			published = r.PublishedAt.Format("2006-01-02 15:04")
		}
		out[i] = []string{
			published,
			r.Title,
			fmt.Sprint(r.ViewCount),
			fmt.Sprintf("%.6f", r.LikeRatio),
			fmt.Sprintf("%.6f", r.CommentRatio),
			r.URL,
		}
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PUBLISHED", "TITLE", "VIEWS", "LIKE/VIEW", "COMMENT/VIEW", "URL").
		Rows(out...).
		Render()
}
