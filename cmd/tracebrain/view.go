package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

func viewCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Value:   ":18700",
			Sources: cli.EnvVars("TRACEBRAIN_ADDR"),
			Usage:   "Server listen address",
		},
	}
	flags = append(flags, sourceFlags()...)

	return &cli.Command{
		Name:  "view",
		Usage: "Serve a JSON API over a trace source",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			src, err := sourceFromCmd(ctx, cmd)
			if err != nil {
				return err
			}

			s := newServer(
				withAddr(cmd.String("addr")),
				withSource(src),
			)
			return s.start(ctx)
		},
	}
}
