package main

import (
	"context"
	"encoding/base64"
	"os"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/tracebrain"
)

// localSource reads traces from a directory of {trace_id}.json files, as
// written by tracebrain.FileRepository.
type localSource struct {
	dir  string
	repo *tracebrain.FileRepository
}

func newLocalSource(dir string) traceSource {
	return &localSource{
		dir:  dir,
		repo: tracebrain.NewFileRepository(dir),
	}
}

func (s *localSource) List(ctx context.Context, req listRequest) (*listResponse, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read trace directory", goerr.Value("dir", s.dir))
	}

	type fileEntry struct {
		name string
		info os.FileInfo
	}
	var files []fileEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{name: e.Name(), info: info})
	}

	// Sorted by name for deterministic page boundaries.
	sort.Slice(files, func(i, j int) bool {
		return files[i].name < files[j].name
	})

	startIdx := 0
	if req.pageToken != "" {
		lastFile, err := decodePageToken(req.pageToken)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid page token")
		}
		startIdx = sort.Search(len(files), func(i int) bool {
			return files[i].name > lastFile
		})
	}

	pageSize := req.pageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	endIdx := startIdx + pageSize
	if endIdx > len(files) {
		endIdx = len(files)
	}

	resp := &listResponse{}
	for _, f := range files[startIdx:endIdx] {
		resp.traces = append(resp.traces, traceSummary{
			TraceID:   strings.TrimSuffix(f.name, ".json"),
			Size:      f.info.Size(),
			UpdatedAt: f.info.ModTime(),
		})
	}
	if endIdx < len(files) {
		resp.nextPageToken = encodePageToken(files[endIdx-1].name)
	}

	return resp, nil
}

func (s *localSource) Get(ctx context.Context, traceID string) (*tracebrain.Trace, error) {
	return s.repo.Load(ctx, traceID)
}

func encodePageToken(fileName string) string {
	return base64.URLEncoding.EncodeToString([]byte(fileName))
}

func decodePageToken(token string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", goerr.Wrap(err, "failed to decode page token")
	}
	return string(b), nil
}
