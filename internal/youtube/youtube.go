package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// PageSize is the number of search results requested per page.
	PageSize = 50
	// DetailBatch is the provider's limit on ids per details call.
	DetailBatch = 50
	// DefaultMaxPages caps pagination at 10,000 ids.
	DefaultMaxPages = 200
)

// Order is the provider sort order for search results.
type Order string

const (
	OrderDate      Order = "date"
	OrderRelevance Order = "relevance"
	OrderViewCount Order = "viewCount"
)

// Orders lists the accepted sort orders in menu order.
func Orders() []Order {
	return []Order{OrderDate, OrderRelevance, OrderViewCount}
}

var (
	ErrEmptyKeyword = errors.New("keyword is required")
	// ErrMissingKey is returned before any network call when no API key is configured.
	ErrMissingKey = errors.New("youtube API key is not configured")
)

// Query selects every video matching Keyword published inside the window.
type Query struct {
	Keyword         string `json:"keyword" validate:"required"`
	Order           Order  `json:"order" validate:"oneof=date relevance viewCount"`
	PublishedAfter  string `json:"published_after" validate:"required"`
	PublishedBefore string `json:"published_before" validate:"required"`
}

var validate = validator.New()

// Validate checks the query before anything touches the network.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Keyword) == "" {
		return ErrEmptyKeyword
	}
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid video query: %w", err)
	}
	return nil
}

// SearchPage is one page of search hits.
type SearchPage struct {
	IDs           []string
	NextPageToken string
}

// RawVideo is the provider's detail record. Absent counters are zero.
type RawVideo struct {
	ID           string
	Title        string
	PublishedAt  string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// Source is the external video platform.
type Source interface {
	Search(ctx context.Context, q Query, pageToken string) (SearchPage, error)
	Videos(ctx context.Context, ids []string) ([]RawVideo, error)
}

// Video is a collected record ready for post-processing.
type Video struct {
	ID           string
	Title        string
	PublishedAt  string
	URL          string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// WatchURL returns the public watch page for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Window returns the ISO-8601 UTC bounds covering the last months calendar
// months up to and including today.
func Window(now time.Time, months int) (after, before string, err error) {
	if months < 1 || months > 24 {
		return "", "", fmt.Errorf("months must be between 1 and 24, got %d", months)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := subMonths(today, months)
	return start.Format("2006-01-02") + "T00:00:00Z", today.Format("2006-01-02") + "T23:59:59Z", nil
}

// subMonths steps back n calendar months, clamping the day to the target
// month's length (Mar 31 minus one month is Feb 28).
func subMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()-time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
