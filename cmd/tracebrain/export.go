package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/tracebrain"
)

// exportRecord is one JSONL line of the training-data export.
type exportRecord struct {
	TraceID   string            `json:"trace_id"`
	EpisodeID string            `json:"episode_id,omitempty"`
	Turns     []tracebrain.Turn `json:"turns"`
}

func exportCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "out",
			Value:   "-",
			Sources: cli.EnvVars("TRACEBRAIN_EXPORT_OUT"),
			Usage:   "Output file path, or - for stdout",
		},
		&cli.StringFlag{
			Name:  "episode",
			Usage: "Export only traces of this episode",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of traces to export (0 for all)",
		},
	}
	flags = append(flags, sourceFlags()...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export reconstructed turns as JSONL training data",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			src, err := sourceFromCmd(ctx, cmd)
			if err != nil {
				return err
			}

			out := os.Stdout
			if path := cmd.String("out"); path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return goerr.Wrap(err, "failed to create output file", goerr.Value("path", path))
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			return runExport(ctx, src, out, cmd.String("episode"), int(cmd.Int("limit")))
		},
	}
}

func runExport(ctx context.Context, src traceSource, out io.Writer, episodeID string, limit int) error {
	enc := json.NewEncoder(out)
	exported := 0
	skipped := 0

	write := func(t *tracebrain.Trace) error {
		if limit > 0 && exported >= limit {
			return nil
		}
		leaf := chainLeaf(t)
		if leaf == "" {
			skipped++
			return nil
		}
		turns, err := tracebrain.ReconstructTurns(t, leaf)
		if err != nil {
			// Broken traces are skipped, not fatal: one malformed ingestion
			// must not abort a batch export.
			slog.Warn("skipping trace with broken chain",
				slog.String("trace_id", t.TraceID),
				slog.Any("error", err),
			)
			skipped++
			return nil
		}
		if len(turns) == 0 {
			skipped++
			return nil
		}
		exported++
		return enc.Encode(exportRecord{
			TraceID:   t.TraceID,
			EpisodeID: t.EpisodeID(),
			Turns:     turns,
		})
	}

	if episodeID != "" {
		traces, err := episodeTraces(ctx, src, episodeID)
		if err != nil {
			return err
		}
		for _, t := range traces {
			if err := write(t); err != nil {
				return err
			}
		}
	} else {
		pageToken := ""
		for {
			resp, err := src.List(ctx, listRequest{pageSize: 100, pageToken: pageToken})
			if err != nil {
				return err
			}
			for _, sum := range resp.traces {
				t, err := src.Get(ctx, sum.TraceID)
				if err != nil {
					return err
				}
				if err := write(t); err != nil {
					return err
				}
			}
			if resp.nextPageToken == "" || (limit > 0 && exported >= limit) {
				break
			}
			pageToken = resp.nextPageToken
		}
	}

	slog.Info("export finished",
		slog.Int("exported", exported),
		slog.Int("skipped", skipped),
	)
	return nil
}
