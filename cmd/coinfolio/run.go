package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"coinfolio/internal/application/usecase/monitor"
)

var run = cli.Command{
	Name:   "run",
	Usage:  "stream live prices for the portfolio until interrupted",
	Action: runAction,
}

func runAction(c *cli.Context) error {
	sc, err := newServiceContext(c)
	if err != nil {
		return err
	}
	defer sc.Close()

	g, ctx := errgroup.WithContext(c.Context)

	if sc.Config.Metrics.Enabled {
		g.Go(func() error {
			return sc.Metrics().Serve(ctx, sc.Config.Metrics.ListenAddr)
		})
	}

	mon := monitor.NewService(sc.BuildMonitorServiceDeps())
	g.Go(func() error {
		return mon.Run(ctx)
	})

	log.Info().
		Str("config", c.String(configFlag.Name)).
		Str("quote", sc.Config.Market.Quote).
		Dur("print_every", sc.Config.PrintEvery()).
		Msg("coinfolio started")

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
