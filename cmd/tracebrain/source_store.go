package main

import (
	"context"
	"strconv"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/tracebrain"
)

// storeSource serves traces from a remote Trace Store API. Page tokens are
// the numeric skip offset of the next page.
type storeSource struct {
	client *tracebrain.Client
}

func newStoreSource(baseURL, apiKey string) traceSource {
	var opts []tracebrain.ClientOption
	if apiKey != "" {
		opts = append(opts, tracebrain.WithAPIKey(apiKey))
	}
	return &storeSource{client: tracebrain.NewClient(baseURL, opts...)}
}

func (s *storeSource) List(ctx context.Context, req listRequest) (*listResponse, error) {
	pageSize := req.pageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	skip := 0
	if req.pageToken != "" {
		n, err := strconv.Atoi(req.pageToken)
		if err != nil || n < 0 {
			return nil, goerr.Wrap(tracebrain.ErrInvalidParameter, "invalid page token", goerr.Value("token", req.pageToken))
		}
		skip = n
	}

	list, err := s.client.ListTraces(ctx, skip, pageSize)
	if err != nil {
		return nil, err
	}

	resp := &listResponse{}
	for _, t := range list.Traces {
		resp.traces = append(resp.traces, traceSummary{TraceID: t.TraceID})
	}
	if next := skip + len(list.Traces); next < list.Total {
		resp.nextPageToken = strconv.Itoa(next)
	}
	return resp, nil
}

func (s *storeSource) Get(ctx context.Context, traceID string) (*tracebrain.Trace, error) {
	return s.client.GetTrace(ctx, traceID)
}

func (s *storeSource) TracesByEpisode(ctx context.Context, episodeID string) ([]*tracebrain.Trace, error) {
	return s.client.TracesByEpisode(ctx, episodeID)
}
