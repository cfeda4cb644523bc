package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"coinfolio/internal/application/usecase/monitor"
)

var price = cli.Command{
	Name:      "price",
	Usage:     "print the latest price of a symbol",
	ArgsUsage: "SYMBOL",
	Action:    priceAction,
}

func priceAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: coinfolio price SYMBOL")
	}
	sc, err := newServiceContext(c)
	if err != nil {
		return err
	}
	defer sc.Close()

	sym := sc.Normalize(c.Args().First())
	px, err := sc.Market().FetchPrice(c.Context, sym)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s %s\n", sym, monitor.FormatPrice(px))
	return nil
}
