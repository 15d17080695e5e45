package tracebrain_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tracebrain"
)

func TestFileRepositorySaveLoad(t *testing.T) {
	dir := t.TempDir()
	repo := tracebrain.NewFileRepository(dir)

	start := time.Date(2025, 10, 27, 10, 30, 1, 0, time.UTC)
	root := llmSpan("a", "", tracebrain.Message{Role: "user", Content: "Hi"})
	root.StartTime = start
	root.EndTime = start.Add(time.Second)

	trace := &tracebrain.Trace{
		TraceID: "test-file-repo",
		Attributes: map[string]any{
			"system_prompt":         "You are helpful",
			"tracebrain.episode.id": "ep-1",
		},
		Spans: []*tracebrain.Span{root, toolSpan("b", "a", "search", "42")},
	}

	gt.NoError(t, repo.Save(context.Background(), trace))

	// The stored file is valid OTLP wire JSON.
	data, err := os.ReadFile(filepath.Join(dir, "test-file-repo.json"))
	gt.NoError(t, err)
	var wire map[string]any
	gt.NoError(t, json.Unmarshal(data, &wire))
	gt.Equal(t, gt.Cast[string](t, wire["trace_id"]), "test-file-repo")

	loaded, err := repo.Load(context.Background(), "test-file-repo")
	gt.NoError(t, err)
	gt.Equal(t, loaded.SystemPrompt(), "You are helpful")
	gt.Equal(t, loaded.EpisodeID(), "ep-1")
	gt.Array(t, loaded.Spans).Length(2)
	gt.Equal(t, loaded.Spans[0].LLMInference.NewContent, []tracebrain.Message{{Role: "user", Content: "Hi"}})
	gt.Equal(t, loaded.Spans[1].ToolExecution.ToolName, "search")
	gt.True(t, loaded.Spans[0].StartTime.Equal(start))
}

func TestFileRepositoryCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	repo := tracebrain.NewFileRepository(dir)

	trace := newTrace("sys", llmSpan("a", ""))
	trace.TraceID = "test-nested-dir"
	gt.NoError(t, repo.Save(context.Background(), trace))

	_, err := os.Stat(filepath.Join(dir, "test-nested-dir.json"))
	gt.NoError(t, err)
}

func TestFileRepositoryLoadMissing(t *testing.T) {
	repo := tracebrain.NewFileRepository(t.TempDir())

	_, err := repo.Load(context.Background(), "no-such-trace")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, tracebrain.ErrTraceNotFound))
}
