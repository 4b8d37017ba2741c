// Package export writes presented tables to files the user can take elsewhere.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matheuskafuri/trendscope/internal/datalab"
	"github.com/matheuskafuri/trendscope/internal/engage"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var videoHeader = []string{"title", "url", "published_at", "view_count", "like_ratio", "comment_ratio"}

// WriteCSV writes rows as UTF-8 CSV prefixed with a byte-order mark so
// spreadsheet tools pick the right encoding.
func WriteCSV(w io.Writer, rows []engage.Row) error {
	return writeBOMCSV(w, videoHeader, func(cw *csv.Writer) error {
		for _, r := range rows {
			published := ""
			if !r.PublishedAt.IsZero() {
				published = r.PublishedAt.Format(time.RFC3339)
			}
			if err := cw.Write([]string{
				r.Title,
				r.URL,
				published,
				strconv.FormatInt(r.ViewCount, 10),
				formatRatio(r.LikeRatio),
				formatRatio(r.CommentRatio),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteTrendCSV writes trend points in the same encoding as WriteCSV.
func WriteTrendCSV(w io.Writer, points []datalab.Point) error {
	return writeBOMCSV(w, []string{"period", "ratio", "title"}, func(cw *csv.Writer) error {
		for _, p := range points {
			if err := cw.Write([]string{
				p.Period.Format("2006-01-02"),
				strconv.FormatFloat(p.Ratio, 'f', -1, 64),
				p.Title,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeBOMCSV(w io.Writer, header []string, body func(*csv.Writer) error) error {
	tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(tw)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := body(cw); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return tw.Close()
}

func formatRatio(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FileName returns the download name for a video export, e.g. youtube_aeron_20250601.csv.
func FileName(keyword string, now time.Time) string {
	return fmt.Sprintf("youtube_%s_%s.csv", sanitize(keyword), now.Format("20060102"))
}

// TrendFileName returns the name for a trend export with the given extension.
func TrendFileName(now time.Time, ext string) string {
	return fmt.Sprintf("datalab_%s.%s", now.Format("20060102"), strings.TrimPrefix(ext, "."))
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

// ToFile creates dir if needed and writes to dir/name with write.
func ToFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
