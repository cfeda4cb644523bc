package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"coinfolio/internal/infrastructure/config"
	"coinfolio/internal/infrastructure/logger"
	"coinfolio/internal/infrastructure/svc"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "path to config.toml (empty: built-in defaults)",
	Value:   "configs/config.toml",
	EnvVars: []string{"COINFOLIO_CONFIG"},
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "coinfolio"
	app.Usage = "realtime crypto portfolio tracker"
	app.Flags = []cli.Flag{configFlag}
	app.Commands = append(
		app.Commands,
		&run,
		&holding,
		&price,
		&klines,
		&universeCmd,
	)
	return app
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fatal(err)
	}
}

// newServiceContext 加载配置、初始化日志并创建依赖
func newServiceContext(c *cli.Context) (*svc.ServiceContext, error) {
	path := c.String(configFlag.Name)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.App.LogLevel)
	return svc.New(c.Context, cfg)
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[coinfolio] %v\n", err)
	os.Exit(1)
}
