package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/matheuskafuri/trendscope/internal/memo"
	"github.com/sirupsen/logrus"
)

// Result is everything one Collect call gathered.
type Result struct {
	Videos    []Video
	Pages     int
	IDs       int
	Truncated bool
}

// Collector walks the search cursor to exhaustion and then fetches details in batches.
type Collector struct {
	source   Source
	maxPages int
	timeout  time.Duration
	cache    *memo.Cache[Result]
	log      *logrus.Entry
}

// CollectorOpts configures a Collector. Zero values take defaults.
type CollectorOpts struct {
	MaxPages int
	Timeout  time.Duration
	Cache    *memo.Cache[Result]
}

func NewCollector(source Source, opts CollectorOpts) *Collector {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Cache == nil {
		opts.Cache = memo.New[Result](memo.DefaultTTL)
	}
	return &Collector{
		source:   source,
		maxPages: opts.MaxPages,
		timeout:  opts.Timeout,
		cache:    opts.Cache,
		log:      logrus.WithField("component", "youtube"),
	}
}

// Collect gathers every video matching q. Any provider error aborts the whole
// run; nothing partial is returned or cached.
func (c *Collector) Collect(ctx context.Context, q Query) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}

	key := memo.Key(q.Keyword, q.Order, q.PublishedAfter, q.PublishedBefore)
	res, hit, err := c.cache.Do(key, func() (Result, error) {
		return c.collect(ctx, q)
	})
	if err != nil {
		c.log.WithError(err).WithField("keyword", q.Keyword).Error("collect failed")
		return Result{}, err
	}
	if hit {
		c.log.WithField("keyword", q.Keyword).Debug("served from cache")
	}
	return res, nil
}

func (c *Collector) collect(ctx context.Context, q Query) (Result, error) {
	var (
		res   Result
		ids   []string
		token string
	)
	for {
		page, err := c.searchPage(ctx, q, token)
		if err != nil {
			return Result{}, fmt.Errorf("search page %d: %w", res.Pages+1, err)
		}
		res.Pages++
		ids = append(ids, page.IDs...)

		token = page.NextPageToken
		if token == "" {
			break
		}
		if res.Pages >= c.maxPages {
			res.Truncated = true
			c.log.WithFields(logrus.Fields{
				"keyword":   q.Keyword,
				"max_pages": c.maxPages,
			}).Warn("page cap reached, stopping pagination")
			break
		}
	}
	res.IDs = len(ids)

	c.log.WithFields(logrus.Fields{
		"keyword": q.Keyword,
		"pages":   res.Pages,
		"ids":     res.IDs,
	}).Info("search exhausted")

	if len(ids) == 0 {
		return res, nil
	}

	for start := 0; start < len(ids); start += DetailBatch {
		end := min(start+DetailBatch, len(ids))
		raws, err := c.videos(ctx, ids[start:end])
		if err != nil {
			return Result{}, fmt.Errorf("video details %d-%d: %w", start, end, err)
		}
		for _, r := range raws {
			res.Videos = append(res.Videos, toVideo(r))
		}
	}
	return res, nil
}

func (c *Collector) searchPage(ctx context.Context, q Query, token string) (SearchPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.source.Search(ctx, q, token)
}

func (c *Collector) videos(ctx context.Context, ids []string) ([]RawVideo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.source.Videos(ctx, ids)
}

func toVideo(r RawVideo) Video {
	return Video{
		ID:           r.ID,
		Title:        r.Title,
		PublishedAt:  r.PublishedAt,
		URL:          WatchURL(r.ID),
		ViewCount:    r.ViewCount,
		LikeCount:    r.LikeCount,
		CommentCount: r.CommentCount,
	}
}
