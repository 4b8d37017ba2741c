package store

import "time"

// Kind names the pipeline that produced a run.
type Kind string

const (
	KindTrend Kind = "trend"
	KindVideo Kind = "video"
)

// Run is one successful query, as shown by `trendscope history`.
type Run struct {
	ID      string
	Kind    Kind
	Label   string
	Params  string
	Fetched int
	Kept    int
	RanAt   time.Time
}

// VideoRow is a presented video stored with its run.
type VideoRow struct {
	RunID        string
	Position     int
	Title        string
	URL          string
	PublishedAt  time.Time
	ViewCount    int64
	LikeRatio    float64
	CommentRatio float64
}

type QueryOpts struct {
	Kind  Kind
	Since time.Time
	Limit int
}
