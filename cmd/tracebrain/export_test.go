package main

import (
	"context"
	"io"
	"net/http"

	"github.com/m-mizutani/tracebrain"
)

// ListTracesResponse is exported for testing.
type ListTracesResponse = listTracesResponse

// TraceSummary is exported for testing.
type TraceSummary = traceSummary

// Exported constructors and options for testing.
var (
	NewServer = newServer
	WithAddr  = withAddr
	ChainLeaf = chainLeaf
)

// Handler returns the server's HTTP handler for testing.
func (s *server) Handler() http.Handler {
	return s.handler()
}

// TestableSource wraps a traceSource for external test access.
type TestableSource struct {
	src traceSource
}

// NewLocalSource creates a TestableSource backed by localSource.
func NewLocalSource(dir string) *TestableSource {
	return &TestableSource{src: newLocalSource(dir)}
}

// NewStoreSource creates a TestableSource backed by storeSource.
func NewStoreSource(baseURL, apiKey string) *TestableSource {
	return &TestableSource{src: newStoreSource(baseURL, apiKey)}
}

// ListResult holds the exported result of a List call.
type ListResult struct {
	Traces        []TraceSummary
	NextPageToken string
}

// List calls the underlying source's List with exported types.
func (ts *TestableSource) List(ctx context.Context, pageSize int, pageToken string) (*ListResult, error) {
	resp, err := ts.src.List(ctx, listRequest{
		pageSize:  pageSize,
		pageToken: pageToken,
	})
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Traces:        resp.traces,
		NextPageToken: resp.nextPageToken,
	}, nil
}

// Get calls the underlying source's Get.
func (ts *TestableSource) Get(ctx context.Context, traceID string) (*tracebrain.Trace, error) {
	return ts.src.Get(ctx, traceID)
}

// WithTestSource creates a server option from a TestableSource.
func WithTestSource(ts *TestableSource) serverOption {
	return withSource(ts.src)
}

// RunExport runs the export pipeline against a TestableSource.
func RunExport(ctx context.Context, ts *TestableSource, out io.Writer, episodeID string, limit int) error {
	return runExport(ctx, ts.src, out, episodeID, limit)
}

// EpisodeTraces resolves an episode against a TestableSource.
func EpisodeTraces(ctx context.Context, ts *TestableSource, episodeID string) ([]*tracebrain.Trace, error) {
	return episodeTraces(ctx, ts.src, episodeID)
}
