package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matheuskafuri/trendscope/internal/memo"
	"google.golang.org/api/option"
)

// fakeSource serves pages from memory and records every call.
type fakeSource struct {
	pages       []SearchPage
	searchCalls int
	tokens      []string
	detailCalls [][]string
	searchErr   error
	detailErr   error
}

func (f *fakeSource) Search(ctx context.Context, q Query, token string) (SearchPage, error) {
	f.searchCalls++
	f.tokens = append(f.tokens, token)
	if f.searchErr != nil {
		return SearchPage{}, f.searchErr
	}
	idx := 0
	if token != "" {
		fmt.Sscanf(token, "p%d", &idx)
	}
	return f.pages[idx], nil
}

func (f *fakeSource) Videos(ctx context.Context, ids []string) ([]RawVideo, error) {
	f.detailCalls = append(f.detailCalls, ids)
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	out := make([]RawVideo, len(ids))
	for i, id := range ids {
		out[i] = RawVideo{ID: id, Title: "title " + id, ViewCount: 1000}
	}
	return out, nil
}

// pagedSource builds n pages of size ids each, chained by tokens p1..p(n-1).
func pagedSource(n, size int) *fakeSource {
	f := &fakeSource{}
	for p := 0; p < n; p++ {
		var page SearchPage
		for i := 0; i < size; i++ {
			page.IDs = append(page.IDs, fmt.Sprintf("v%d-%d", p, i))
		}
		if p < n-1 {
			page.NextPageToken = fmt.Sprintf("p%d", p+1)
		}
		f.pages = append(f.pages, page)
	}
	return f
}

func testQuery() Query {
	return Query{
		Keyword:         "aeron chair",
		Order:           OrderDate,
		PublishedAfter:  "2025-01-01T00:00:00Z",
		PublishedBefore: "2025-06-30T23:59:59Z",
	}
}

func TestCollectFollowsCursorUntilExhausted(t *testing.T) {
	src := pagedSource(4, 50)
	src.pages[3].IDs = src.pages[3].IDs[:7]
	c := NewCollector(src, CollectorOpts{})

	res, err := c.Collect(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if src.searchCalls != 4 {
		t.Errorf("expected 4 search calls, got %d", src.searchCalls)
	}
	wantTokens := []string{"", "p1", "p2", "p3"}
	for i, tok := range wantTokens {
		if src.tokens[i] != tok {
			t.Errorf("call %d token = %q, want %q", i, src.tokens[i], tok)
		}
	}
	if res.IDs != 157 || len(res.Videos) != 157 {
		t.Errorf("expected 157 ids and videos, got %d / %d", res.IDs, len(res.Videos))
	}
	if res.Pages != 4 || res.Truncated {
		t.Errorf("unexpected pages=%d truncated=%v", res.Pages, res.Truncated)
	}
}

func TestCollectChunksDetails(t *testing.T) {
	src := pagedSource(3, 50)
	src.pages[2].IDs = src.pages[2].IDs[:1]
	c := NewCollector(src, CollectorOpts{})

	if _, err := c.Collect(context.Background(), testQuery()); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(src.detailCalls) != 3 {
		t.Fatalf("expected 3 detail calls for 101 ids, got %d", len(src.detailCalls))
	}
	sizes := []int{50, 50, 1}
	for i, want := range sizes {
		if got := len(src.detailCalls[i]); got != want {
			t.Errorf("detail call %d size = %d, want %d", i, got, want)
		}
	}
}

func TestCollectKeepsDuplicates(t *testing.T) {
	src := &fakeSource{pages: []SearchPage{
		{IDs: []string{"a", "b"}, NextPageToken: "p1"},
		{IDs: []string{"b", "c"}},
	}}
	c := NewCollector(src, CollectorOpts{})

	res, err := c.Collect(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.IDs != 4 {
		t.Errorf("expected 4 ids (no dedup), got %d", res.IDs)
	}
	if got := strings.Join(src.detailCalls[0], ","); got != "a,b,b,c" {
		t.Errorf("detail ids = %s", got)
	}
}

func TestCollectNoIDsSkipsDetails(t *testing.T) {
	src := &fakeSource{pages: []SearchPage{{}}}
	c := NewCollector(src, CollectorOpts{})

	res, err := c.Collect(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(res.Videos) != 0 || len(src.detailCalls) != 0 {
		t.Errorf("expected empty result without detail calls, got %d videos, %d calls", len(res.Videos), len(src.detailCalls))
	}
}

func TestCollectPageCap(t *testing.T) {
	src := pagedSource(10, 5)
	c := NewCollector(src, CollectorOpts{MaxPages: 3})

	res, err := c.Collect(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !res.Truncated {
		t.Error("expected truncated result")
	}
	if src.searchCalls != 3 || res.IDs != 15 {
		t.Errorf("expected 3 pages / 15 ids, got %d / %d", src.searchCalls, res.IDs)
	}
}

func TestCollectEmptyKeyword(t *testing.T) {
	src := pagedSource(1, 1)
	c := NewCollector(src, CollectorOpts{})
	q := testQuery()
	q.Keyword = "   "

	if _, err := c.Collect(context.Background(), q); !errors.Is(err, ErrEmptyKeyword) {
		t.Errorf("expected ErrEmptyKeyword, got %v", err)
	}
	if src.searchCalls != 0 {
		t.Error("expected no network call")
	}
}

func TestCollectInvalidOrder(t *testing.T) {
	src := pagedSource(1, 1)
	c := NewCollector(src, CollectorOpts{})
	q := testQuery()
	q.Order = "rating"

	if _, err := c.Collect(context.Background(), q); err == nil {
		t.Error("expected validation error for unknown order")
	}
	if src.searchCalls != 0 {
		t.Error("expected no network call")
	}
}

func TestCollectAbortsOnError(t *testing.T) {
	src := pagedSource(2, 3)
	src.detailErr = errors.New("quota exceeded")
	c := NewCollector(src, CollectorOpts{})

	res, err := c.Collect(context.Background(), testQuery())
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected quota error, got %v", err)
	}
	if len(res.Videos) != 0 {
		t.Error("expected no partial result")
	}

	src.detailErr = nil
	if _, err := c.Collect(context.Background(), testQuery()); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if src.searchCalls != 4 {
		t.Errorf("failed run must not be cached, search calls = %d", src.searchCalls)
	}
}

func TestCollectCachesWithinTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cache := memo.New[Result](10 * time.Minute).WithClock(func() time.Time { return now })
	src := pagedSource(2, 2)
	c := NewCollector(src, CollectorOpts{Cache: cache})

	first, err := c.Collect(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := c.Collect(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if src.searchCalls != 2 {
		t.Errorf("expected cached second call, search calls = %d", src.searchCalls)
	}
	if len(first.Videos) != len(second.Videos) {
		t.Error("cached result differs")
	}

	now = now.Add(11 * time.Minute)
	if _, err := c.Collect(context.Background(), testQuery()); err != nil {
		t.Fatalf("third: %v", err)
	}
	if src.searchCalls != 4 {
		t.Errorf("expected refetch after ttl, search calls = %d", src.searchCalls)
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		now    time.Time
		months int
		after  string
		before string
	}{
		{time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC), 6, "2024-12-15T00:00:00Z", "2025-06-15T23:59:59Z"},
		{time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), 1, "2025-02-28T00:00:00Z", "2025-03-31T23:59:59Z"},
		{time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 1, "2024-02-29T00:00:00Z", "2024-03-31T23:59:59Z"},
		{time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), 24, "2023-01-10T00:00:00Z", "2025-01-10T23:59:59Z"},
	}
	for _, tt := range tests {
		after, before, err := Window(tt.now, tt.months)
		if err != nil {
			t.Errorf("Window(%v, %d): %v", tt.now, tt.months, err)
			continue
		}
		if after != tt.after || before != tt.before {
			t.Errorf("Window(%v, %d) = %s, %s; want %s, %s", tt.now, tt.months, after, before, tt.after, tt.before)
		}
	}
}

func TestWindowRejectsOutOfRange(t *testing.T) {
	for _, m := range []int{0, -1, 25} {
		if _, _, err := Window(time.Now(), m); err == nil {
			t.Errorf("Window(months=%d): expected error", m)
		}
	}
}

func TestAPISourceAgainstFakeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/search"):
			q := r.URL.Query()
			if q.Get("q") != "aeron chair" || q.Get("type") != "video" || q.Get("maxResults") != "50" {
				http.Error(w, "bad search params: "+r.URL.RawQuery, http.StatusBadRequest)
				return
			}
			if q.Get("pageToken") == "" {
				fmt.Fprint(w, `{"items":[{"id":{"videoId":"a"}},{"id":{"channelId":"c"}}],"nextPageToken":"p1"}`)
				return
			}
			fmt.Fprint(w, `{"items":[{"id":{"videoId":"b"}}]}`)
		case strings.HasSuffix(r.URL.Path, "/videos"):
			fmt.Fprint(w, `{"items":[
				{"id":"a","snippet":{"title":"A","publishedAt":"2025-01-02T03:04:05Z"},"statistics":{"viewCount":"150","likeCount":"3"}},
				{"id":"b","snippet":{"title":"B","publishedAt":"2025-01-03T03:04:05Z"},"statistics":{}}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := NewAPISource(context.Background(), "test-key",
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewAPISource: %v", err)
	}

	res, err := NewCollector(src, CollectorOpts{}).Collect(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Pages != 2 || res.IDs != 2 {
		t.Errorf("expected 2 pages / 2 ids, got %d / %d", res.Pages, res.IDs)
	}
	if len(res.Videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(res.Videos))
	}
	a := res.Videos[0]
	if a.ViewCount != 150 || a.LikeCount != 3 || a.CommentCount != 0 {
		t.Errorf("unexpected counts: %+v", a)
	}
	if a.URL != "https://www.youtube.com/watch?v=a" {
		t.Errorf("unexpected url %s", a.URL)
	}
	if res.Videos[1].ViewCount != 0 {
		t.Errorf("absent view count should be 0, got %d", res.Videos[1].ViewCount)
	}
}

func TestNewAPISourceRequiresKey(t *testing.T) {
	if _, err := NewAPISource(context.Background(), ""); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
}
