package tracebrain_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tracebrain"
)

func TestClientLogTrace(t *testing.T) {
	var gotIdempotencyKey string
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.Method, http.MethodPost)
		gt.Equal(t, r.URL.Path, "/api/v1/traces")
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := tracebrain.NewClient(srv.URL, tracebrain.WithAPIKey("secret"))
	trace := newTrace("sys", llmSpan("a", "", tracebrain.Message{Role: "user", Content: "Hi"}))

	gt.NoError(t, client.LogTrace(context.Background(), trace))
	gt.Equal(t, gotIdempotencyKey, "trace-1")
	gt.Equal(t, gotAuth, "Bearer secret")
	gt.Equal(t, gt.Cast[string](t, gotBody["trace_id"]), "trace-1")
}

func TestClientLogTraceConflictIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := tracebrain.NewClient(srv.URL)
	gt.NoError(t, client.LogTrace(context.Background(), newTrace("sys", llmSpan("a", ""))))
}

func TestClientLogTraceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := tracebrain.NewClient(srv.URL)
	gt.Error(t, client.LogTrace(context.Background(), newTrace("sys", llmSpan("a", ""))))
}

func TestClientGetTrace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/v1/traces/abc123")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"trace_id": "abc123",
			"attributes": {"system_prompt": "You are helpful"},
			"spans": [
				{"span_id": "a", "parent_id": null, "name": "LLM Inference",
				 "attributes": {"tracebrain.span.type": "llm_inference",
				                "tracebrain.llm.new_content": "[{\"role\":\"user\",\"content\":\"Hi\"}]"}}
			]
		}`))
	}))
	defer srv.Close()

	client := tracebrain.NewClient(srv.URL)
	trace, err := client.GetTrace(context.Background(), "abc123")
	gt.NoError(t, err)
	gt.Equal(t, trace.TraceID, "abc123")
	gt.Equal(t, trace.SystemPrompt(), "You are helpful")
	gt.Array(t, trace.Spans).Length(1)
	gt.NotNil(t, trace.Spans[0].LLMInference)
}

func TestClientGetTraceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := tracebrain.NewClient(srv.URL)
	_, err := client.GetTrace(context.Background(), "missing")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, tracebrain.ErrTraceNotFound))
}

func TestClientListTraces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/v1/traces")
		gt.Equal(t, r.URL.Query().Get("skip"), "5")
		gt.Equal(t, r.URL.Query().Get("limit"), "10")
		_, _ = w.Write([]byte(`{"traces": [{"trace_id": "t1", "spans": []}], "total": 42}`))
	}))
	defer srv.Close()

	client := tracebrain.NewClient(srv.URL)
	list, err := client.ListTraces(context.Background(), 5, 10)
	gt.NoError(t, err)
	gt.Equal(t, list.Total, 42)
	gt.Array(t, list.Traces).Length(1)
	gt.Equal(t, list.Traces[0].TraceID, "t1")
}

func TestClientTracesByEpisode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/v1/episodes/ep-1/traces")
		_, _ = w.Write([]byte(`{"episode_id": "ep-1", "traces": [{"trace_id": "t1", "spans": []}, {"trace_id": "t2", "spans": []}]}`))
	}))
	defer srv.Close()

	client := tracebrain.NewClient(srv.URL)
	traces, err := client.TracesByEpisode(context.Background(), "ep-1")
	gt.NoError(t, err)
	gt.Array(t, traces).Length(2)
}

func TestClientInitTraceGeneratesID(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/v1/traces/init")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := tracebrain.NewClient(srv.URL)
	id, err := client.InitTrace(context.Background(), tracebrain.InitTraceInput{
		EpisodeID:    "ep-1",
		SystemPrompt: "sys",
	})
	gt.NoError(t, err)
	gt.Equal(t, len(id), 32)
	gt.Equal(t, gt.Cast[string](t, gotBody["trace_id"]), id)
}

func TestClientAddFeedback(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/v1/traces/t1/feedback")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := tracebrain.NewClient(srv.URL)
	err := client.AddFeedback(context.Background(), "t1", tracebrain.Feedback{
		Rating:  5,
		Comment: "excellent reasoning",
		Tags:    []string{"approved"},
	})
	gt.NoError(t, err)
	gt.Equal(t, gt.Cast[float64](t, gotBody["rating"]), 5)
}

func TestClientHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	gt.True(t, tracebrain.NewClient(srv.URL).HealthCheck(context.Background()))
	srv.Close()
	gt.False(t, tracebrain.NewClient(srv.URL).HealthCheck(context.Background()))
}
