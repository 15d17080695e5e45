package tracebrain

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
)

// Repository is the interface for persisting trace data.
type Repository interface {
	Save(ctx context.Context, trace *Trace) error
}

// FileRepository persists traces as one JSON file per trace ID.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a FileRepository that writes to the given
// directory.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Save writes the trace as JSON to {dir}/{trace_id}.json.
func (r *FileRepository) Save(_ context.Context, trace *Trace) error {
	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return goerr.Wrap(err, "failed to create trace directory", goerr.Value("dir", r.dir))
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal trace", goerr.Value("trace_id", trace.TraceID))
	}

	path := filepath.Join(r.dir, trace.TraceID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write trace file", goerr.Value("path", path))
	}

	return nil
}

// Load reads a trace back from {dir}/{trace_id}.json. Returns
// ErrTraceNotFound if no such file exists.
func (r *FileRepository) Load(_ context.Context, traceID string) (*Trace, error) {
	path := filepath.Clean(filepath.Join(r.dir, traceID+".json"))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrTraceNotFound, "no trace file", goerr.Value("trace_id", traceID))
		}
		return nil, goerr.Wrap(err, "failed to read trace file", goerr.Value("path", path))
	}

	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to parse trace file", goerr.Value("path", path))
	}

	return &t, nil
}
