package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tradeloop/tradeloop/config"
	"github.com/tradeloop/tradeloop/engine"
	"github.com/tradeloop/tradeloop/log"
	"github.com/tradeloop/tradeloop/signaler"
	"github.com/tradeloop/tradeloop/strategies"
	"github.com/urfave/cli/v2"
)

var (
	verbose       bool
	metricsListen string
)

var errNoConfigs = errors.New("at least one config file is required")

func main() {
	app := cli.NewApp()
	app.Name = "backtester"
	app.Usage = "replays market data feeds through simulated brokers and strategies"
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "enables debug logging for every sub logger",
			Destination: &verbose,
		},
	}
	app.Commands = []*cli.Command{
		runCommand,
		validateCommand,
		strategiesCommand,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-signaler.WaitForInterrupt()
		fmt.Println("backtester interrupted, stopping tasks")
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "runs every config file given as a task and waits for them to finish",
	ArgsUsage: "<config> [config...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "metrics-listen",
			Usage:       "serves prometheus metrics on this address, overriding the config",
			Destination: &metricsListen,
		},
	},
	Action: run,
}

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "loads, upgrades and validates config files",
	ArgsUsage: "<config> [config...]",
	Action:    validate,
}

var strategiesCommand = &cli.Command{
	Name:   "strategies",
	Usage:  "lists the registered strategies",
	Action: listStrategies,
}

func setupLogger(cfg *config.Config) error {
	lc := log.GenDefaultSettings()
	lc.Level = "INFO|WARN|ERROR"
	if cfg != nil && cfg.Logging != nil {
		lc = *cfg.Logging
	}
	if verbose {
		lc.Level = "INFO|DEBUG|WARN|ERROR"
		for i := range lc.SubLoggers {
			lc.SubLoggers[i].Level = lc.Level
		}
	}
	return log.SetupGlobalLogger(&lc)
}

func loadConfigs(c *cli.Context) ([]*config.Config, error) {
	if c.NArg() == 0 {
		return nil, errNoConfigs
	}
	cfgs := make([]*config.Config, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		cfg, err := config.ReadConfigFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

func run(c *cli.Context) error {
	cfgs, err := loadConfigs(c)
	if err != nil {
		return err
	}
	if err := setupLogger(cfgs[0]); err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	metrics := engine.NewMetrics()
	listen := metricsListen
	if listen == "" && cfgs[0].Metrics.Enabled {
		listen = cfgs[0].Metrics.ListenAddress
	}
	if listen != "" {
		srv := &http.Server{
			Addr:              listen,
			Handler:           promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf(log.Global, "metrics server: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Errorf(log.Global, "metrics server shutdown: %v", err)
			}
		}()
		log.Infof(log.Global, "serving metrics on %s", listen)
	}

	manager := engine.NewTaskManager()
	for _, cfg := range cfgs {
		cfg.PrintSetting()
		e, err := engine.NewFromConfig(c.Context, cfg, metrics)
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.Nickname, err)
		}
		task, err := engine.NewTask(e)
		if err != nil {
			return err
		}
		if err := manager.AddTask(task); err != nil {
			return err
		}
	}
	ids, err := manager.StartAllTasks(c.Context)
	if err != nil {
		return err
	}
	var errs error
	for _, id := range ids {
		errs = errors.Join(errs, manager.Wait(id))
	}
	summaries, err := manager.List()
	if err != nil {
		return err
	}
	return errors.Join(errs, printJSON(summaries))
}

func validate(c *cli.Context) error {
	if err := setupLogger(nil); err != nil {
		return err
	}
	cfgs, err := loadConfigs(c)
	if err != nil {
		return err
	}
	for i, cfg := range cfgs {
		fmt.Printf("%s: %q is valid (version %d)\n", c.Args().Get(i), cfg.Nickname, cfg.Version)
	}
	return nil
}

type strategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func listStrategies(*cli.Context) error {
	strats := strategies.GetStrategies()
	resp := make([]strategyInfo, len(strats))
	for i := range strats {
		resp[i] = strategyInfo{Name: strats[i].Name(), Description: strats[i].Description()}
	}
	return printJSON(resp)
}

func printJSON(in any) error {
	j, err := json.MarshalIndent(in, "", " ")
	if err != nil {
		return err
	}
	fmt.Println(string(j))
	return nil
}
