package main

import (
	"errors"
	"os"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/tradeloop/feed/database"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
	"github.com/urfave/cli/v2"
)

var errMissingFlag = errors.New("symbol, venue, settlement, interval and filename are required")

var seedCandleCommand = &cli.Command{
	Name:  "candle",
	Usage: "seed candle data",
	Subcommands: []*cli.Command{
		{
			Name:      "file",
			Usage:     "seed candle data from a file",
			ArgsUsage: "<symbol> <venue> <settlement> <interval> <filename>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "symbol",
					Usage: "instrument symbol of supplied candle data, e.g. BTC-USD",
				},
				&cli.StringFlag{
					Name:  "venue",
					Usage: "venue of supplied candle data",
				},
				&cli.StringFlag{
					Name:  "settlement",
					Usage: "settlement currency of the instrument",
				},
				&cli.StringFlag{
					Name:  "interval",
					Usage: "bar granularity of supplied candle data, e.g. 1-MINUTE",
				},
				&cli.StringFlag{
					Name:      "filename",
					Usage:     "CSV file to load candle data from",
					TakesFile: true,
				},
			},
			Action: seedCandleFromFile,
		},
	},
}

// flagOrArg returns the named flag, falling back to the positional argument
func flagOrArg(c *cli.Context, name string, pos int) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return c.Args().Get(pos)
}

func seedCandleFromFile(c *cli.Context) error {
	if c.NumFlags() == 0 && c.NArg() == 0 {
		return cli.ShowSubcommandHelp(c)
	}

	symbol := flagOrArg(c, "symbol", 0)
	venue := flagOrArg(c, "venue", 1)
	settlement := flagOrArg(c, "settlement", 2)
	granularity := flagOrArg(c, "interval", 3)
	fileName := flagOrArg(c, "filename", 4)
	if symbol == "" || venue == "" || settlement == "" || granularity == "" || fileName == "" {
		return errMissingFlag
	}

	if _, err := os.Stat(fileName); err != nil {
		return err
	}
	interval, err := market.ParseGranularity(granularity)
	if err != nil {
		return err
	}
	tick, err := decimal.NewFromString(c.String("tick"))
	if err != nil {
		return err
	}
	inst, err := market.NewInstrument(symbol, venue, settlement, tick)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorln(log.Global, err)
		}
	}()

	totalInserted, err := store.InsertFromCSV(c.Context, fileName, inst, interval)
	if err != nil {
		return err
	}
	log.Infof(log.Global, "Inserted: %v %s records", totalInserted, inst.ID())
	return nil
}

func openStore(c *cli.Context) (*database.Store, error) {
	store, err := database.Open(&database.Config{
		Driver: c.String("driver"),
		DSN:    c.String("dsn"),
	})
	if err != nil {
		return nil, err
	}
	if err := store.CreateSchema(c.Context); err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return store, nil
}
