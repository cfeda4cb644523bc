package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var universeCmd = cli.Command{
	Name:  "universe",
	Usage: "show the tradable symbols for the configured quote asset",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "list", Usage: "print every symbol instead of the count"},
	},
	Action: universeAction,
}

func universeAction(c *cli.Context) error {
	sc, err := newServiceContext(c)
	if err != nil {
		return err
	}
	defer sc.Close()

	u, err := sc.Market().Universe(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("list") {
		for _, s := range u.Symbols() {
			fmt.Fprintln(c.App.Writer, s)
		}
		return nil
	}
	fmt.Fprintf(c.App.Writer, "%d tradable %s symbols\n", u.Len(), sc.Config.Market.Quote)
	return nil
}
