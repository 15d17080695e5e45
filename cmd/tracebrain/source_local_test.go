package main_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/tracebrain"
	main "github.com/m-mizutani/tracebrain/cmd/tracebrain"
)

func TestLocalSourceList(t *testing.T) {
	ctx := context.Background()

	t.Run("list all traces", func(t *testing.T) {
		src := main.NewLocalSource("testdata")
		resp := gt.R1(src.List(ctx, 10, "")).NoError(t)
		gt.Array(t, resp.Traces).Length(3)
		gt.Equal(t, "trace-alpha", resp.Traces[0].TraceID)
		gt.Equal(t, "trace-beta", resp.Traces[1].TraceID)
		gt.Equal(t, "trace-broken", resp.Traces[2].TraceID)
		gt.Equal(t, "", resp.NextPageToken)
	})

	t.Run("pagination first page", func(t *testing.T) {
		src := main.NewLocalSource("testdata")
		resp := gt.R1(src.List(ctx, 2, "")).NoError(t)
		gt.Array(t, resp.Traces).Length(2)
		gt.Equal(t, "trace-alpha", resp.Traces[0].TraceID)
		gt.Equal(t, "trace-beta", resp.Traces[1].TraceID)
		gt.True(t, resp.NextPageToken != "")
	})

	t.Run("pagination second page", func(t *testing.T) {
		src := main.NewLocalSource("testdata")
		resp1 := gt.R1(src.List(ctx, 2, "")).NoError(t)

		resp2 := gt.R1(src.List(ctx, 2, resp1.NextPageToken)).NoError(t)
		gt.Array(t, resp2.Traces).Length(1)
		gt.Equal(t, "trace-broken", resp2.Traces[0].TraceID)
		gt.Equal(t, "", resp2.NextPageToken)
	})

	t.Run("invalid page token", func(t *testing.T) {
		src := main.NewLocalSource("testdata")
		_, err := src.List(ctx, 10, "not base64 !!!")
		gt.Error(t, err)
	})

	t.Run("empty directory", func(t *testing.T) {
		src := main.NewLocalSource(t.TempDir())
		resp := gt.R1(src.List(ctx, 10, "")).NoError(t)
		gt.Array(t, resp.Traces).Length(0)
	})

	t.Run("non-existent directory", func(t *testing.T) {
		src := main.NewLocalSource("/nonexistent")
		_, err := src.List(ctx, 10, "")
		gt.Error(t, err)
	})

	t.Run("default page size", func(t *testing.T) {
		src := main.NewLocalSource("testdata")
		resp := gt.R1(src.List(ctx, 0, "")).NoError(t)
		gt.Array(t, resp.Traces).Length(3)
	})
}

func TestLocalSourceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("get existing trace", func(t *testing.T) {
		src := main.NewLocalSource("testdata")
		tr := gt.R1(src.Get(ctx, "trace-alpha")).NoError(t)
		gt.Equal(t, "trace-alpha", tr.TraceID)
		gt.Equal(t, "ep-demo", tr.EpisodeID())
		gt.Array(t, tr.Spans).Length(3)
	})

	t.Run("get non-existent trace", func(t *testing.T) {
		src := main.NewLocalSource("testdata")
		_, err := src.Get(ctx, "non-existent")
		gt.True(t, errors.Is(err, tracebrain.ErrTraceNotFound))
	})
}

func TestEpisodeTraces(t *testing.T) {
	ctx := context.Background()
	src := main.NewLocalSource("testdata")

	t.Run("matching episode", func(t *testing.T) {
		traces := gt.R1(main.EpisodeTraces(ctx, src, "ep-demo")).NoError(t)
		gt.Array(t, traces).Length(2)
		gt.Equal(t, "trace-alpha", traces[0].TraceID)
		gt.Equal(t, "trace-beta", traces[1].TraceID)
	})

	t.Run("no match", func(t *testing.T) {
		traces := gt.R1(main.EpisodeTraces(ctx, src, "ep-none")).NoError(t)
		gt.Array(t, traces).Length(0)
	})
}
