// Package pipeline runs the two query flows end to end: fetch, post-process,
// and optionally record the run in history. The TUI and the headless
// subcommands share it.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matheuskafuri/trendscope/internal/config"
	"github.com/matheuskafuri/trendscope/internal/datalab"
	"github.com/matheuskafuri/trendscope/internal/engage"
	"github.com/matheuskafuri/trendscope/internal/memo"
	"github.com/matheuskafuri/trendscope/internal/store"
	"github.com/matheuskafuri/trendscope/internal/youtube"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// TrendFetcher is satisfied by *datalab.Client.
type TrendFetcher interface {
	HasCredentials() bool
	Fetch(ctx context.Context, q datalab.Query) ([]datalab.Point, error)
}

// VideoCollector is satisfied by *youtube.Collector.
type VideoCollector interface {
	Collect(ctx context.Context, q youtube.Query) (youtube.Result, error)
}

// Recorder is satisfied by *store.Store.
type Recorder interface {
	RecordRun(kind store.Kind, label string, params any, fetched, kept int, videos []store.VideoRow) (string, error)
}

// Services bundles the configured fetchers. Videos is nil when no API key is set.
type Services struct {
	Trends   TrendFetcher
	Videos   VideoCollector
	MinViews int64
}

// New builds the fetchers described by cfg. A missing YouTube key is not an
// error here; the video pipeline reports it when it is run.
func New(ctx context.Context, cfg *config.Config) (*Services, error) {
	ttl := cfg.CacheTTLDuration()
	timeout := cfg.RequestTimeoutDuration()

	id, secret := cfg.DataLabCredentials()
	trends := datalab.NewClient(datalab.ClientOpts{
		Endpoint:     cfg.DataLab.Endpoint,
		ClientID:     id,
		ClientSecret: secret,
		Timeout:      timeout,
		Cache:        memo.New[[]datalab.Point](ttl),
	})

	svc := &Services{Trends: trends, MinViews: cfg.GetMinViews()}

	key := cfg.YouTubeKey()
	if key == "" {
		logrus.Warn("youtube api key not configured, video search disabled")
		return svc, nil
	}
	var opts []option.ClientOption
	if cfg.YouTube.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.YouTube.Endpoint))
	}
	src, err := youtube.NewAPISource(ctx, key, opts...)
	if err != nil {
		return nil, fmt.Errorf("building youtube source: %w", err)
	}
	svc.Videos = youtube.NewCollector(src, youtube.CollectorOpts{
		MaxPages: cfg.YouTube.MaxPages,
		Timeout:  timeout,
		Cache:    memo.New[youtube.Result](ttl),
	})
	return svc, nil
}

// TrendRun is a finished trend query, sorted for display.
type TrendRun struct {
	Query  datalab.Query
	Points []datalab.Point
}

// Pivot returns the chart matrix of the run.
func (r TrendRun) Pivot() datalab.Pivot {
	return datalab.NewPivot(r.Points)
}

// Trend checks credentials, then the query, then fetches.
func (s *Services) Trend(ctx context.Context, q datalab.Query) (TrendRun, error) {
	if s.Trends == nil || !s.Trends.HasCredentials() {
		return TrendRun{}, datalab.ErrMissingCredentials
	}
	if err := q.Validate(); err != nil {
		return TrendRun{}, err
	}
	if len(q.Groups) == 0 {
		return TrendRun{}, datalab.ErrNoGroups
	}
	points, err := s.Trends.Fetch(ctx, q)
	if err != nil {
		return TrendRun{}, err
	}
	datalab.SortForDisplay(points)
	return TrendRun{Query: q, Points: points}, nil
}

// VideoRun is a finished video query: the filtered rows newest first plus
// the collection counters.
type VideoRun struct {
	Query     youtube.Query
	Rows      []engage.Row
	Summary   engage.Summary
	Pages     int
	Truncated bool
}

// Video checks the key, then collects, filters and sorts.
func (s *Services) Video(ctx context.Context, q youtube.Query) (VideoRun, error) {
	if s.Videos == nil {
		return VideoRun{}, youtube.ErrMissingKey
	}
	res, err := s.Videos.Collect(ctx, q)
	if err != nil {
		return VideoRun{}, err
	}
	minViews := s.MinViews
	if minViews <= 0 {
		minViews = engage.DefaultMinViews
	}
	rows, sum := engage.Build(res.Videos, minViews)
	engage.SortByPublishedDesc(rows)
	return VideoRun{
		Query:     q,
		Rows:      rows,
		Summary:   sum,
		Pages:     res.Pages,
		Truncated: res.Truncated,
	}, nil
}

type trendParams struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Unit   string `json:"unit"`
	Groups int    `json:"groups"`
}

// RecordTrend stores a trend run in history.
func RecordTrend(rec Recorder, run TrendRun) (string, error) {
	names := make([]string, len(run.Query.Groups))
	for i, g := range run.Query.Groups {
		names[i] = g.Name
	}
	params := trendParams{
		Start:  run.Query.Start.Format(time.DateOnly),
		End:    run.Query.End.Format(time.DateOnly),
		Unit:   string(run.Query.Unit),
		Groups: len(run.Query.Groups),
	}
	return rec.RecordRun(store.KindTrend, strings.Join(names, ", "), params, len(run.Points), len(run.Points), nil)
}

// RecordVideo stores a video run and its presented rows in history.
func RecordVideo(rec Recorder, run VideoRun) (string, error) {
	videos := make([]store.VideoRow, len(run.Rows))
	for i, r := range run.Rows {
		videos[i] = store.VideoRow{
			Position:     i,
			Title:        r.Title,
			URL:          r.URL,
			PublishedAt:  r.PublishedAt,
			ViewCount:    r.ViewCount,
			LikeRatio:    r.LikeRatio,
			CommentRatio: r.CommentRatio,
		}
	}
	return rec.RecordRun(store.KindVideo, run.Query.Keyword, run.Query, run.Summary.Fetched, run.Summary.Kept, videos)
}
