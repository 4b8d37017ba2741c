// Package engage turns collected videos into the presented table: engagement
// ratios, the minimum-view filter and the publish-time sort.
package engage

import (
	"math"
	"sort"
	"time"

	"github.com/matheuskafuri/trendscope/internal/youtube"
)

// DefaultMinViews is the smallest view count that makes it into the table.
const DefaultMinViews = 100

// Row is one line of the presented video table.
type Row struct {
	Title        string
	URL          string
	PublishedAt  time.Time
	ViewCount    int64
	LikeRatio    float64
	CommentRatio float64
}

// Summary counts what was fetched against what is shown.
type Summary struct {
	Fetched int
	Kept    int
}

// Ratios returns like/view and comment/view rounded to 6 decimals. Negative
// counts are treated as zero and both ratios are zero when there are no views.
func Ratios(views, likes, comments int64) (likeRatio, commentRatio float64) {
	views, likes, comments = nonNegative(views), nonNegative(likes), nonNegative(comments)
	if views == 0 {
		return 0, 0
	}
	return round6(float64(likes) / float64(views)), round6(float64(comments) / float64(views))
}

// Build keeps videos with at least minViews views and computes their ratios.
// Order follows the input; call SortByPublishedDesc for presentation.
func Build(videos []youtube.Video, minViews int64) ([]Row, Summary) {
	rows := make([]Row, 0, len(videos))
	for _, v := range videos {
		views := nonNegative(v.ViewCount)
		if views < minViews {
			continue
		}
		like, comment := Ratios(views, v.LikeCount, v.CommentCount)
		rows = append(rows, Row{
			Title:        v.Title,
			URL:          v.URL,
			PublishedAt:  parsePublished(v.PublishedAt),
			ViewCount:    views,
			LikeRatio:    like,
			CommentRatio: comment,
		})
	}
	return rows, Summary{Fetched: len(videos), Kept: len(rows)}
}

// SortByPublishedDesc orders rows newest first; ties keep their input order.
func SortByPublishedDesc(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PublishedAt.After(rows[j].PublishedAt)
	})
}

func parsePublished(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
