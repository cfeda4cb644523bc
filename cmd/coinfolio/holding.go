package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"coinfolio/internal/domain"
)

var (
	holding = cli.Command{
		Name:        "holding",
		Usage:       "manage portfolio holdings",
		Subcommands: []*cli.Command{holdingSetCmd, holdingRmCmd, holdingLsCmd},
	}

	holdingSetCmd = &cli.Command{
		Name:      "set",
		Usage:     "add or replace a holding (latest amount and average buy price)",
		ArgsUsage: "SYMBOL",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "amount", Usage: "amount held", Required: true},
			&cli.Float64Flag{Name: "avg", Usage: "average buy price in the quote asset", Required: true},
		},
		Action: holdingSetAction,
	}
	holdingRmCmd = &cli.Command{
		Name:      "rm",
		Usage:     "remove a holding",
		ArgsUsage: "SYMBOL",
		Action:    holdingRmAction,
	}
	holdingLsCmd = &cli.Command{
		Name:  "ls",
		Usage: "list holdings with current value",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "offline", Usage: "skip fetching current prices"},
		},
		Action: holdingLsAction,
	}
)

func holdingSetAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: coinfolio holding set SYMBOL --amount N --avg P")
	}
	sc, err := newServiceContext(c)
	if err != nil {
		return err
	}
	defer sc.Close()

	item, err := sc.Portfolio().SetHolding(c.Context, c.Args().First(), c.Float64("amount"), c.Float64("avg"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s amount=%v avg=%v\n", item.Symbol, item.Amount, item.AvgBuyPrice)
	return nil
}

func holdingRmAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: coinfolio holding rm SYMBOL")
	}
	sc, err := newServiceContext(c)
	if err != nil {
		return err
	}
	defer sc.Close()

	if err := sc.Portfolio().RemoveHolding(c.Context, c.Args().First()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %s\n", c.Args().First())
	return nil
}

func holdingLsAction(c *cli.Context) error {
	sc, err := newServiceContext(c)
	if err != nil {
		return err
	}
	defer sc.Close()

	items, err := sc.Portfolio().ListHoldings(c.Context)
	if err != nil {
		return err
	}

	prices := map[string]float64{}
	if !c.Bool("offline") && len(items) > 0 {
		if prices, err = sc.Market().FetchAllPrices(c.Context); err != nil {
			log.Warn().Err(err).Msg("fetch prices failed, showing cost basis only")
			prices = map[string]float64{}
		}
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tAMOUNT\tAVG\tPRICE\tVALUE")
	for _, it := range items {
		px, ok := prices[it.Symbol]
		pxStr, valStr := "--", "--"
		if ok {
			pxStr = fmt.Sprintf("%v", px)
			valStr = fmt.Sprintf("%.2f", px*it.Amount)
		}
		fmt.Fprintf(tw, "%s\t%v\t%v\t%s\t%s\n", it.Symbol, it.Amount, it.AvgBuyPrice, pxStr, valStr)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	totals := domain.CalculateTotals(items, prices)
	fmt.Fprintf(c.App.Writer, "invested=%.2f value=%.2f pnl=%+.2f (%+.2f%%)\n",
		totals.Invested, totals.Current, totals.PnL, totals.PnLPercent)
	return nil
}
