package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"coinfolio/internal/application/usecase/monitor"
)

var klines = cli.Command{
	Name:      "klines",
	Usage:     "print OHLC candles for a symbol",
	ArgsUsage: "SYMBOL",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "interval", Usage: "candle interval (1m, 1h, 1d, ...)", Value: "1h"},
		&cli.IntFlag{Name: "limit", Usage: "number of candles, 1..1000", Value: 24},
	},
	Action: klinesAction,
}

func klinesAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: coinfolio klines SYMBOL [--interval 1h] [--limit 24]")
	}
	sc, err := newServiceContext(c)
	if err != nil {
		return err
	}
	defer sc.Close()

	candles, err := sc.Market().FetchKlines(c.Context, sc.Normalize(c.Args().First()), c.String("interval"), c.Int("limit"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPEN_TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
	for _, k := range candles {
		vol := "--"
		if k.Volume != nil {
			vol = fmt.Sprintf("%.4f", *k.Volume)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			time.UnixMilli(k.OpenTime).UTC().Format(time.RFC3339),
			monitor.FormatPrice(k.Open), monitor.FormatPrice(k.High),
			monitor.FormatPrice(k.Low), monitor.FormatPrice(k.Close), vol)
	}
	return tw.Flush()
}
