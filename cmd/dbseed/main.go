package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tradeloop/tradeloop/feed/database"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/signaler"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "dbseed",
		Usage: "seed the tradeloop candle store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "driver",
				Value: database.DBSQLite3,
				Usage: "database driver, sqlite3 or postgres",
			},
			&cli.StringFlag{
				Name:  "dsn",
				Value: "tradeloop.db",
				Usage: "sqlite3 file path or postgres connection string",
			},
			&cli.StringFlag{
				Name:  "tick",
				Value: "0.01",
				Usage: "instrument tick size",
			},
		},
		Commands: []*cli.Command{
			seedCandleCommand,
		},
	}

	lc := log.GenDefaultSettings()
	if err := log.SetupGlobalLogger(&lc); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-signaler.WaitForInterrupt()
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		cancel()
		fmt.Println(err)
		os.Exit(1)
	}
	cancel()
}
