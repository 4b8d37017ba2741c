// Package datalab fetches search-trend series for keyword groups.
package datalab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/matheuskafuri/trendscope/internal/keywords"
	"github.com/matheuskafuri/trendscope/internal/memo"
	"github.com/sirupsen/logrus"
)

const (
	DefaultEndpoint = "https://openapi.naver.com/v1/datalab/search"

	// Provider limits on a single request.
	MaxGroups           = 5
	MaxKeywordsPerGroup = 20

	dateLayout = "2006-01-02"
)

// TimeUnit is the bucket size of a trend series.
type TimeUnit string

const (
	UnitDate  TimeUnit = "date"
	UnitWeek  TimeUnit = "week"
	UnitMonth TimeUnit = "month"
)

// Units lists the accepted buckets in menu order.
func Units() []TimeUnit {
	return []TimeUnit{UnitDate, UnitWeek, UnitMonth}
}

var (
	ErrInvalidRange       = errors.New("start date is after end date")
	ErrNoGroups           = errors.New("no valid keyword groups")
	ErrMissingCredentials = errors.New("datalab client id and secret are required")
)

// Query asks for the trend of every group between Start and End, inclusive.
type Query struct {
	Start  time.Time        `validate:"required"`
	End    time.Time        `validate:"required"`
	Unit   TimeUnit         `validate:"oneof=date week month"`
	Groups []keywords.Group `validate:"max=5,dive"`
}

// Point is one bucket of one group's series.
type Point struct {
	Period time.Time `json:"period"`
	Ratio  float64   `json:"ratio"`
	Title  string    `json:"title"`
}

var validate = validator.New()

// Validate checks the range, unit and provider limits. An empty group list is valid.
func (q Query) Validate() error {
	if dateOnly(q.Start).After(dateOnly(q.End)) {
		return ErrInvalidRange
	}
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid trend query: %w", err)
	}
	for _, g := range q.Groups {
		if len(g.Keywords) > MaxKeywordsPerGroup {
			return fmt.Errorf("group %q has %d keywords, at most %d allowed", g.Name, len(g.Keywords), MaxKeywordsPerGroup)
		}
	}
	return nil
}

// Client calls the trend API. Results are memoised per query.
type Client struct {
	endpoint     string
	clientID     string
	clientSecret string
	http         *http.Client
	cache        *memo.Cache[[]Point]
	log          *logrus.Entry
}

// ClientOpts configures a Client. Zero values take defaults.
type ClientOpts struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Cache        *memo.Cache[[]Point]
}

func NewClient(opts ClientOpts) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Cache == nil {
		opts.Cache = memo.New[[]Point](memo.DefaultTTL)
	}
	return &Client{
		endpoint:     opts.Endpoint,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		http:         opts.HTTPClient,
		cache:        opts.Cache,
		log:          logrus.WithField("component", "datalab"),
	}
}

// HasCredentials reports whether both halves of the credential pair are set.
func (c *Client) HasCredentials() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// Fetch returns one Point per (group, bucket). An empty group list returns no
// points without a network call.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Point, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if len(q.Groups) == 0 {
		return nil, nil
	}
	if !c.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	key := memo.Key(q.Start.Format(dateLayout), q.End.Format(dateLayout), q.Unit, q.Groups)
	points, hit, err := c.cache.Do(key, func() ([]Point, error) {
		return c.fetch(ctx, q)
	})
	if err != nil {
		c.log.WithError(err).WithField("groups", len(q.Groups)).Error("trend fetch failed")
		return nil, err
	}
	if hit {
		c.log.WithField("groups", len(q.Groups)).Debug("served from cache")
	}
	return points, nil
}

type requestBody struct {
	StartDate     string           `json:"startDate"`
	EndDate       string           `json:"endDate"`
	TimeUnit      TimeUnit         `json:"timeUnit"`
	KeywordGroups []keywords.Group `json:"keywordGroups"`
}

type responseBody struct {
	Results []struct {
		Title string `json:"title"`
		Data  []struct {
			Period string  `json:"period"`
			Ratio  float64 `json:"ratio"`
		} `json:"data"`
	} `json:"results"`
}

func (c *Client) fetch(ctx context.Context, q Query) ([]Point, error) {
	body, err := json.Marshal(requestBody{
		StartDate:     q.Start.Format(dateLayout),
		EndDate:       q.End.Format(dateLayout),
		TimeUnit:      q.Unit,
		KeywordGroups: q.Groups,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datalab API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("datalab API %d: %s", resp.StatusCode, string(b))
	}

	var rb responseBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return nil, fmt.Errorf("decoding datalab response: %w", err)
	}

	var points []Point
	for _, r := range rb.Results {
		for _, d := range r.Data {
			period, err := time.Parse(dateLayout, d.Period)
			if err != nil {
				return nil, fmt.Errorf("parsing period %q of %q: %w", d.Period, r.Title, err)
			}
			points = append(points, Point{Period: period, Ratio: d.Ratio, Title: r.Title})
		}
	}

	c.log.WithFields(logrus.Fields{
		"groups":      len(q.Groups),
		"points":      len(points),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("trend fetched")
	return points, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
