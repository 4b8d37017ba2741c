package youtube

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

// APISource talks to the YouTube Data API v3.
type APISource struct {
	svc *ytapi.Service
}

// NewAPISource builds a client authenticated with apiKey. Extra options are
// appended, so an endpoint or HTTP client override wins over the defaults.
func NewAPISource(ctx context.Context, apiKey string, opts ...option.ClientOption) (*APISource, error) {
	if apiKey == "" {
		return nil, ErrMissingKey
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := ytapi.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("creating youtube service: %w", err)
	}
	return &APISource{svc: svc}, nil
}

func (s *APISource) Search(ctx context.Context, q Query, pageToken string) (SearchPage, error) {
	call := s.svc.Search.List([]string{"id"}).
		Q(q.Keyword).
		Type("video").
		Order(string(q.Order)).
		MaxResults(PageSize).
		PublishedAfter(q.PublishedAfter).
		PublishedBefore(q.PublishedBefore).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return SearchPage{}, fmt.Errorf("youtube search: %w", err)
	}

	page := SearchPage{NextPageToken: resp.NextPageToken}
	for _, it := range resp.Items {
		if it.Id == nil || it.Id.VideoId == "" {
			continue
		}
		page.IDs = append(page.IDs, it.Id.VideoId)
	}
	return page, nil
}

func (s *APISource) Videos(ctx context.Context, ids []string) ([]RawVideo, error) {
	if len(ids) > DetailBatch {
		return nil, fmt.Errorf("at most %d ids per details call, got %d", DetailBatch, len(ids))
	}
	resp, err := s.svc.Videos.List([]string{"snippet", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube videos: %w", err)
	}

	out := make([]RawVideo, 0, len(resp.Items))
	for _, it := range resp.Items {
		rv := RawVideo{ID: it.Id}
		if it.Snippet != nil {
			rv.Title = it.Snippet.Title
			rv.PublishedAt = it.Snippet.PublishedAt
		}
		if st := it.Statistics; st != nil {
			rv.ViewCount = clampCount(st.ViewCount)
			rv.LikeCount = clampCount(st.LikeCount)
			rv.CommentCount = clampCount(st.CommentCount)
		}
		out = append(out, rv)
	}
	return out, nil
}

func clampCount(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}
