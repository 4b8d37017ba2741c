package datalab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheuskafuri/trendscope/internal/keywords"
	"github.com/matheuskafuri/trendscope/internal/memo"
)

const sampleResponse = `{
	"startDate": "2025-01-01", "endDate": "2025-01-03", "timeUnit": "date",
	"results": [
		{"title": "chair", "keywords": ["chair"], "data": [
			{"period": "2025-01-01", "ratio": 50.5},
			{"period": "2025-01-02", "ratio": 100}
		]},
		{"title": "english", "keywords": ["english"], "data": []},
		{"title": "lamp", "keywords": ["lamp"], "data": [
			{"period": "2025-01-01", "ratio": 12.25}
		]}
	]
}`

type fakeAPI struct {
	srv   *httptest.Server
	calls atomic.Int32
	last  requestBody
}

func newFakeAPI(t *testing.T, status int, body string) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("X-Naver-Client-Id") != "id" || r.Header.Get("X-Naver-Client-Secret") != "secret" {
			http.Error(w, "auth", http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&f.last); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func testClient(f *fakeAPI, cache *memo.Cache[[]Point]) *Client {
	return NewClient(ClientOpts{
		Endpoint:     f.srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		Cache:        cache,
	})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testQuery() Query {
	return Query{
		Start:  day(2025, 1, 1),
		End:    day(2025, 1, 3),
		Unit:   UnitDate,
		Groups: keywords.Parse("chair: chair, office chair\nenglish: english\nlamp: lamp"),
	}
}

func TestFetchFlattensSeries(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, sampleResponse)
	c := testClient(api, nil)

	points, err := c.Fetch(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d: %+v", len(points), points)
	}
	if points[0].Title != "chair" || !points[0].Period.Equal(day(2025, 1, 1)) || points[0].Ratio != 50.5 {
		t.Errorf("unexpected first point %+v", points[0])
	}
	if points[2].Title != "lamp" {
		t.Errorf("expected lamp last, got %s", points[2].Title)
	}

	if api.last.StartDate != "2025-01-01" || api.last.EndDate != "2025-01-03" || api.last.TimeUnit != UnitDate {
		t.Errorf("unexpected request body %+v", api.last)
	}
	if len(api.last.KeywordGroups) != 3 || api.last.KeywordGroups[0].Keywords[1] != "office chair" {
		t.Errorf("groups not batched into one call: %+v", api.last.KeywordGroups)
	}
	if api.calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", api.calls.Load())
	}
}

func TestFetchRejectsInvertedRange(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, sampleResponse)
	c := testClient(api, nil)
	q := testQuery()
	q.Start, q.End = day(2025, 2, 1), day(2025, 1, 1)

	if _, err := c.Fetch(context.Background(), q); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	q.Groups = nil
	if _, err := c.Fetch(context.Background(), q); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange with no groups, got %v", err)
	}
	if api.calls.Load() != 0 {
		t.Error("expected no network call")
	}
}

func TestFetchSameDayRange(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, `{"results":[]}`)
	c := testClient(api, nil)
	q := testQuery()
	q.Start = time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)
	q.End = day(2025, 1, 1)

	if _, err := c.Fetch(context.Background(), q); err != nil {
		t.Errorf("same calendar day should be accepted: %v", err)
	}
}

func TestFetchEmptyGroupsNoCall(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, sampleResponse)
	c := NewClient(ClientOpts{Endpoint: api.srv.URL})
	q := testQuery()
	q.Groups = nil

	points, err := c.Fetch(context.Background(), q)
	if err != nil || len(points) != 0 {
		t.Errorf("expected empty result, got %v, %v", points, err)
	}
	if api.calls.Load() != 0 {
		t.Error("expected no network call")
	}
}

func TestFetchMissingCredentials(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, sampleResponse)
	c := NewClient(ClientOpts{Endpoint: api.srv.URL, ClientID: "id"})

	if _, err := c.Fetch(context.Background(), testQuery()); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
	if api.calls.Load() != 0 {
		t.Error("expected no network call")
	}
}

func TestFetchValidation(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, sampleResponse)
	c := testClient(api, nil)

	q := testQuery()
	q.Unit = "hour"
	if _, err := c.Fetch(context.Background(), q); err == nil {
		t.Error("expected error for unknown unit")
	}

	q = testQuery()
	q.Groups = keywords.Parse("a: a\nb: b\nc: c\nd: d\ne: e\nf: f")
	if _, err := c.Fetch(context.Background(), q); err == nil {
		t.Error("expected error for more than 5 groups")
	}

	q = testQuery()
	many := make([]string, MaxKeywordsPerGroup+1)
	for i := range many {
		many[i] = fmt.Sprintf("k%d", i)
	}
	q.Groups = []keywords.Group{{Name: "big", Keywords: many}}
	if _, err := c.Fetch(context.Background(), q); err == nil {
		t.Error("expected error for too many keywords")
	}

	if api.calls.Load() != 0 {
		t.Error("expected no network call on validation failures")
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	api := newFakeAPI(t, http.StatusBadRequest, `{"errorMessage":"Invalid time unit","errorCode":"400"}`)
	c := testClient(api, nil)

	_, err := c.Fetch(context.Background(), testQuery())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "Invalid time unit") {
		t.Errorf("expected status and body in error, got %v", err)
	}

	if _, err := c.Fetch(context.Background(), testQuery()); err == nil {
		t.Fatal("expected error on second call")
	}
	if api.calls.Load() != 2 {
		t.Errorf("failures must not be cached, calls = %d", api.calls.Load())
	}
}

func TestFetchCachedWithinTTL(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, sampleResponse)
	now := day(2025, 1, 4)
	cache := memo.New[[]Point](10 * time.Minute).WithClock(func() time.Time { return now })
	c := testClient(api, cache)

	first, err := c.Fetch(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	now = now.Add(9 * time.Minute)
	second, err := c.Fetch(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if api.calls.Load() != 1 {
		t.Errorf("expected cache hit, calls = %d", api.calls.Load())
	}
	if len(first) != len(second) || first[1] != second[1] {
		t.Error("cached output differs")
	}

	q := testQuery()
	q.Unit = UnitWeek
	if _, err := c.Fetch(context.Background(), q); err != nil {
		t.Fatalf("different params: %v", err)
	}
	if api.calls.Load() != 2 {
		t.Errorf("different params should miss, calls = %d", api.calls.Load())
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.Fetch(context.Background(), testQuery()); err != nil {
		t.Fatalf("after ttl: %v", err)
	}
	if api.calls.Load() != 3 {
		t.Errorf("expected refetch after ttl, calls = %d", api.calls.Load())
	}
}

func TestSortForDisplay(t *testing.T) {
	points := []Point{
		{Title: "b", Period: day(2025, 1, 2)},
		{Title: "a", Period: day(2025, 1, 2)},
		{Title: "b", Period: day(2025, 1, 1)},
		{Title: "a", Period: day(2025, 1, 1)},
	}
	SortForDisplay(points)
	var got []string
	for _, p := range points {
		got = append(got, p.Title+p.Period.Format("02"))
	}
	if strings.Join(got, ",") != "a01,a02,b01,b02" {
		t.Errorf("unexpected order %v", got)
	}
}

func TestNewPivot(t *testing.T) {
	points := []Point{
		{Title: "chair", Period: day(2025, 1, 2), Ratio: 10},
		{Title: "chair", Period: day(2025, 1, 1), Ratio: 5},
		{Title: "lamp", Period: day(2025, 1, 2), Ratio: 3},
		{Title: "lamp", Period: day(2025, 1, 2), Ratio: 4},
	}
	pv := NewPivot(points)
	if len(pv.Periods) != 2 || !pv.Periods[0].Equal(day(2025, 1, 1)) {
		t.Fatalf("unexpected periods %v", pv.Periods)
	}
	if len(pv.Series) != 2 || pv.Series[0].Title != "chair" {
		t.Fatalf("unexpected series %+v", pv.Series)
	}
	if pv.Series[0].Values[0] != 5 || pv.Series[0].Values[1] != 10 {
		t.Errorf("chair values = %v", pv.Series[0].Values)
	}
	if pv.Series[1].Values[0] != 0 || pv.Series[1].Values[1] != 7 {
		t.Errorf("lamp values = %v (missing cell 0, duplicates summed)", pv.Series[1].Values)
	}
}
