package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/tracebrain"
)

// traceSummary is a lightweight representation of a trace, derived from
// object metadata without reading the trace contents.
type traceSummary struct {
	TraceID   string    `json:"trace_id"`
	Size      int64     `json:"size,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

type listRequest struct {
	pageSize  int
	pageToken string
}

type listResponse struct {
	traces        []traceSummary
	nextPageToken string
}

// traceSource provides access to trace data from various backends.
type traceSource interface {
	List(ctx context.Context, req listRequest) (*listResponse, error)
	Get(ctx context.Context, traceID string) (*tracebrain.Trace, error)
}

// episodeSource is implemented by sources that can resolve an episode
// directly. Sources without it fall back to scanning.
type episodeSource interface {
	TracesByEpisode(ctx context.Context, episodeID string) ([]*tracebrain.Trace, error)
}

// episodeTraces resolves all traces of an episode, using the source's
// native episode lookup when available and a full scan otherwise.
func episodeTraces(ctx context.Context, src traceSource, episodeID string) ([]*tracebrain.Trace, error) {
	if es, ok := src.(episodeSource); ok {
		return es.TracesByEpisode(ctx, episodeID)
	}

	var matched []*tracebrain.Trace
	pageToken := ""
	for {
		resp, err := src.List(ctx, listRequest{pageSize: 100, pageToken: pageToken})
		if err != nil {
			return nil, err
		}
		for _, sum := range resp.traces {
			t, err := src.Get(ctx, sum.TraceID)
			if err != nil {
				return nil, err
			}
			if t.EpisodeID() == episodeID {
				matched = append(matched, t)
			}
		}
		if resp.nextPageToken == "" {
			return matched, nil
		}
		pageToken = resp.nextPageToken
	}
}

// sourceFlags are shared by the view and export commands.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Sources: cli.EnvVars("TRACEBRAIN_DIR"),
			Usage:   "Local directory containing trace JSON files",
		},
		&cli.StringFlag{
			Name:    "bucket",
			Sources: cli.EnvVars("TRACEBRAIN_BUCKET"),
			Usage:   "Google Cloud Storage bucket name",
		},
		&cli.StringFlag{
			Name:    "prefix",
			Sources: cli.EnvVars("TRACEBRAIN_PREFIX"),
			Usage:   "Google Cloud Storage object prefix",
		},
		&cli.StringFlag{
			Name:    "store",
			Sources: cli.EnvVars("TRACEBRAIN_STORE"),
			Usage:   "Trace Store API base URL",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Sources: cli.EnvVars("TRACEBRAIN_API_KEY"),
			Usage:   "Trace Store API key",
		},
	}
}

func sourceFromCmd(ctx context.Context, cmd *cli.Command) (traceSource, error) {
	dir := cmd.String("dir")
	bucket := cmd.String("bucket")
	store := cmd.String("store")

	selected := 0
	for _, v := range []string{dir, bucket, store} {
		if v != "" {
			selected++
		}
	}
	if selected == 0 {
		return nil, fmt.Errorf("one of --dir, --bucket or --store must be specified")
	}
	if selected > 1 {
		return nil, fmt.Errorf("--dir, --bucket and --store are mutually exclusive")
	}

	switch {
	case dir != "":
		return newLocalSource(dir), nil
	case bucket != "":
		src, err := newCSSource(ctx, bucket, cmd.String("prefix"))
		if err != nil {
			return nil, fmt.Errorf("failed to create Cloud Storage source: %w", err)
		}
		return src, nil
	default:
		return newStoreSource(store, cmd.String("api-key")), nil
	}
}
