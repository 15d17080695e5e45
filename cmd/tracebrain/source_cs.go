package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"

	"github.com/m-mizutani/tracebrain"
)

// csSource reads traces from a Google Cloud Storage bucket holding
// {prefix}{trace_id}.json objects.
type csSource struct {
	bucket string
	prefix string
	client *storage.Client
}

func newCSSource(ctx context.Context, bucket, prefix string) (traceSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
	}
	return &csSource{
		bucket: bucket,
		prefix: prefix,
		client: client,
	}, nil
}

func (s *csSource) List(ctx context.Context, req listRequest) (*listResponse, error) {
	pageSize := req.pageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})

	pager := iterator.NewPager(it, pageSize, req.pageToken)
	var attrs []*storage.ObjectAttrs
	nextToken, err := pager.NextPage(&attrs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list trace objects",
			goerr.Value("bucket", s.bucket),
			goerr.Value("prefix", s.prefix),
		)
	}

	resp := &listResponse{
		nextPageToken: nextToken,
	}
	for _, attr := range attrs {
		if !strings.HasSuffix(attr.Name, ".json") {
			continue
		}
		name := strings.TrimPrefix(attr.Name, s.prefix)
		traceID := strings.TrimSuffix(name, ".json")
		if traceID == "" || strings.Contains(traceID, "/") {
			continue
		}

		resp.traces = append(resp.traces, traceSummary{
			TraceID:   traceID,
			Size:      attr.Size,
			UpdatedAt: attr.Updated,
		})
	}

	return resp, nil
}

func (s *csSource) Get(ctx context.Context, traceID string) (*tracebrain.Trace, error) {
	objectName := s.prefix + traceID + ".json"
	reader, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open trace object",
			goerr.Value("bucket", s.bucket),
			goerr.Value("object", objectName),
		)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read trace object",
			goerr.Value("bucket", s.bucket),
			goerr.Value("object", objectName),
		)
	}

	var t tracebrain.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to parse trace object",
			goerr.Value("bucket", s.bucket),
			goerr.Value("object", objectName),
		)
	}

	return &t, nil
}
