package engine

import (
	"context"
	"fmt"

	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/config"
	"github.com/tradeloop/tradeloop/feed"
	"github.com/tradeloop/tradeloop/feed/database"
	"github.com/tradeloop/tradeloop/feed/websocket"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/market"
	"github.com/tradeloop/tradeloop/simbroker"
	"github.com/tradeloop/tradeloop/simbroker/fee"
	"github.com/tradeloop/tradeloop/simbroker/slippage"
	"github.com/tradeloop/tradeloop/strategies"
)

// NewFromConfig builds an engine with the brokers, feeds and strategies a
// validated config describes. Historical feeds are loaded up front
func NewFromConfig(ctx context.Context, cfg *config.Config, metrics *Metrics) (*TradingEngine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w config", common.ErrNilPointer)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e, err := NewTradingEngine(&Settings{
		Name:             cfg.Nickname,
		IdlePollInterval: cfg.Engine.IdlePollInterval.Duration(),
		Metrics:          metrics,
	})
	if err != nil {
		return nil, err
	}
	for i := range cfg.Brokers {
		b, err := setupBroker(cfg, &cfg.Brokers[i])
		if err != nil {
			return nil, err
		}
		if err := e.AddBroker(b); err != nil {
			return nil, err
		}
	}
	for i := range cfg.Feeds {
		if err := setupFeed(ctx, e, cfg, &cfg.Feeds[i]); err != nil {
			return nil, fmt.Errorf("feed %s: %w", cfg.Feeds[i].Name, err)
		}
	}
	for i := range cfg.Strategies {
		s := &cfg.Strategies[i]
		h, err := strategies.LoadStrategyByName(s.Name)
		if err != nil {
			return nil, err
		}
		if err := h.SetCustomSettings(s.CustomSettings); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s.StrategyID(), err)
		}
		if err := e.AddStrategy(s.StrategyID(), h); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func setupBroker(cfg *config.Config, bs *config.BrokerSettings) (*simbroker.SimBroker, error) {
	instruments := make([]*market.Instrument, 0, len(bs.Instruments))
	for _, id := range bs.Instruments {
		inst, err := cfg.Instrument(id)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	feeModel, err := fee.New(bs.Fee.Model, bs.Fee.Maker, bs.Fee.Taker, bs.Fee.PerContract)
	if err != nil {
		return nil, fmt.Errorf("broker %s: %w", bs.Name, err)
	}
	slip, err := slippage.New(bs.Slippage.Model, bs.Slippage.Ticks, bs.Slippage.Rate)
	if err != nil {
		return nil, fmt.Errorf("broker %s: %w", bs.Name, err)
	}
	loc, err := bs.LoadLocation()
	if err != nil {
		return nil, fmt.Errorf("broker %s: %w", bs.Name, err)
	}
	return simbroker.New(&simbroker.Settings{
		Name:        bs.Name,
		Instruments: instruments,
		InitialCash: bs.InitialCash,
		Fee:         feeModel,
		Slippage:    slip,
		DayBoundary: bs.DayBoundary.Duration(),
		Location:    loc,
	})
}

func setupFeed(ctx context.Context, e *TradingEngine, cfg *config.Config, fs *config.FeedSettings) error {
	conversion, err := market.ParseBarConversion(fs.BarConversion)
	if err != nil {
		return err
	}
	settings := FeedSettings{DrivesFills: fs.DrivesFills, BarConversion: conversion}
	switch fs.Kind {
	case config.DatabaseFeed:
		f, err := loadDatabaseFeed(ctx, cfg, fs)
		if err != nil {
			return err
		}
		return e.AddFeed(fs.Name, f, settings)
	case config.WebsocketFeed:
		ws := fs.Websocket
		wcfg := &websocket.Config{
			Name:              fs.Name,
			URL:               ws.URL,
			ReconnectInterval: ws.ReconnectInterval.Duration(),
			ReadTimeout:       ws.ReadTimeout.Duration(),
			BufferSize:        ws.BufferSize,
		}
		if ws.Subscribe != "" {
			wcfg.Subscribe = []byte(ws.Subscribe)
		}
		for _, id := range ws.Instruments {
			inst, err := cfg.Instrument(id)
			if err != nil {
				return err
			}
			wcfg.Instruments = append(wcfg.Instruments, inst)
		}
		client, err := websocket.New(wcfg)
		if err != nil {
			return err
		}
		if err := e.AddProducer(client); err != nil {
			return err
		}
		return e.AddFeed(fs.Name, client.Feed(), settings)
	case config.TimerFeed:
		var (
			t   *feed.Timer
			err error
		)
		if !fs.Timer.At.IsZero() {
			t, err = feed.NewTimer(fs.Name, fs.Timer.At)
		} else {
			t, err = feed.NewPeriodicTimer(fs.Name, fs.Timer.Start, fs.Timer.Interval.Duration(), fs.Timer.End)
		}
		if err != nil {
			return err
		}
		// timers never drive fills
		return e.AddFeed(fs.Name, t, FeedSettings{})
	}
	return fmt.Errorf("unsupported feed kind %q", fs.Kind)
}

func loadDatabaseFeed(ctx context.Context, cfg *config.Config, fs *config.FeedSettings) (*feed.Historical, error) {
	d := fs.Database
	inst, err := cfg.Instrument(d.Instrument)
	if err != nil {
		return nil, err
	}
	interval, err := market.ParseGranularity(d.Granularity)
	if err != nil {
		return nil, err
	}
	store, err := database.Open(&database.Config{Driver: d.Driver, DSN: d.DSN})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf(log.Engine, "closing %s database: %v", fs.Name, err)
		}
	}()
	return store.Feed(ctx, fs.Name, &database.Query{
		Instrument: inst,
		Interval:   interval,
		Start:      d.StartDate,
		End:        d.EndDate,
	})
}
