package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/m-mizutani/tracebrain"
)

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

// writeReconstructError maps reconstruction failures to HTTP statuses: a
// missing target span is the caller's mistake, a broken chain or malformed
// content means the stored trace data is incomplete.
func writeReconstructError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracebrain.ErrSpanNotFound):
		writeError(w, http.StatusNotFound, "span not found in trace")
	case errors.Is(err, tracebrain.ErrBrokenChain), errors.Is(err, tracebrain.ErrMalformedContent):
		writeError(w, http.StatusUnprocessableEntity, "trace data incomplete")
	default:
		writeError(w, http.StatusInternalServerError, "reconstruction failed")
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listTracesResponse struct {
	Traces        []traceSummary `json:"traces"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func (s *server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	pageSize := 20
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid page_size parameter")
			return
		}
		pageSize = n
	}

	resp, err := s.source.List(r.Context(), listRequest{
		pageSize:  pageSize,
		pageToken: r.URL.Query().Get("page_token"),
	})
	if err != nil {
		slog.Error("failed to list traces", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list traces")
		return
	}

	traces := resp.traces
	if traces == nil {
		traces = []traceSummary{}
	}

	writeJSON(w, http.StatusOK, listTracesResponse{
		Traces:        traces,
		NextPageToken: resp.nextPageToken,
	})
}

// getTrace loads the trace addressed by the request path, writing the error
// response itself when the lookup fails.
func (s *server) getTrace(w http.ResponseWriter, r *http.Request) *tracebrain.Trace {
	traceID := r.PathValue("id")
	if traceID == "" {
		writeError(w, http.StatusBadRequest, "trace ID is required")
		return nil
	}

	t, err := s.source.Get(r.Context(), traceID)
	if err != nil {
		slog.Error("failed to get trace", slog.Any("error", err), slog.String("trace_id", traceID))
		writeError(w, http.StatusNotFound, "trace not found")
		return nil
	}
	return t
}

func (s *server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	t := s.getTrace(w, r)
	if t == nil {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type treeResponse struct {
	TraceID string             `json:"trace_id"`
	Roots   []*tracebrain.Node `json:"roots"`
}

func (s *server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	t := s.getTrace(w, r)
	if t == nil {
		return
	}
	writeJSON(w, http.StatusOK, treeResponse{
		TraceID: t.TraceID,
		Roots:   tracebrain.BuildDisplayTree(t),
	})
}

type contextResponse struct {
	TraceID  string               `json:"trace_id"`
	SpanID   string               `json:"span_id"`
	Messages []tracebrain.Message `json:"messages"`
	Expand   []string             `json:"expand,omitempty"`
}

func (s *server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	t := s.getTrace(w, r)
	if t == nil {
		return
	}
	spanID := r.URL.Query().Get("span_id")
	if spanID == "" {
		writeError(w, http.StatusBadRequest, "span_id parameter is required")
		return
	}

	messages, err := tracebrain.ReconstructContext(t, spanID)
	if err != nil {
		slog.Error("failed to reconstruct context", slog.Any("error", err), slog.String("trace_id", t.TraceID))
		writeReconstructError(w, err)
		return
	}
	expand, err := tracebrain.ExpandPathTo(t, spanID)
	if err != nil {
		writeReconstructError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contextResponse{
		TraceID:  t.TraceID,
		SpanID:   spanID,
		Messages: messages,
		Expand:   expand,
	})
}

type turnsResponse struct {
	TraceID string            `json:"trace_id"`
	SpanID  string            `json:"span_id"`
	Turns   []tracebrain.Turn `json:"turns"`
}

func (s *server) handleGetTurns(w http.ResponseWriter, r *http.Request) {
	t := s.getTrace(w, r)
	if t == nil {
		return
	}
	spanID := r.URL.Query().Get("span_id")
	if spanID == "" {
		spanID = chainLeaf(t)
	}
	if spanID == "" {
		writeJSON(w, http.StatusOK, turnsResponse{TraceID: t.TraceID, Turns: []tracebrain.Turn{}})
		return
	}

	turns, err := tracebrain.ReconstructTurns(t, spanID)
	if err != nil {
		slog.Error("failed to reconstruct turns", slog.Any("error", err), slog.String("trace_id", t.TraceID))
		writeReconstructError(w, err)
		return
	}
	if turns == nil {
		turns = []tracebrain.Turn{}
	}

	writeJSON(w, http.StatusOK, turnsResponse{
		TraceID: t.TraceID,
		SpanID:  spanID,
		Turns:   turns,
	})
}

type episodeResponse struct {
	tracebrain.EpisodeSummary
	Traces []*tracebrain.Trace `json:"traces"`
}

func (s *server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	episodeID := r.PathValue("id")
	if episodeID == "" {
		writeError(w, http.StatusBadRequest, "episode ID is required")
		return
	}

	traces, err := episodeTraces(r.Context(), s.source, episodeID)
	if err != nil {
		slog.Error("failed to resolve episode", slog.Any("error", err), slog.String("episode_id", episodeID))
		writeError(w, http.StatusInternalServerError, "failed to resolve episode")
		return
	}
	episodes := tracebrain.GroupByEpisode(traces)
	if len(episodes) == 0 {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}

	writeJSON(w, http.StatusOK, episodeResponse{
		EpisodeSummary: episodes[0].Summary(),
		Traces:         episodes[0].Traces,
	})
}

// chainLeaf returns the last span in input order that has no children,
// which on a linear delta chain is the final step of the run. Returns ""
// for an empty trace.
func chainLeaf(t *tracebrain.Trace) string {
	idx := tracebrain.BuildChildIndex(t.Spans)
	for i := len(t.Spans) - 1; i >= 0; i-- {
		if len(idx[t.Spans[i].SpanID]) == 0 {
			return t.Spans[i].SpanID
		}
	}
	return ""
}
