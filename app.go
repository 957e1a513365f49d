package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/umi-digital/umi-farmd/internal/lib/misc"
)

var logLevel = new(slog.LevelVar) // Info by default

var App *FarmApp

func initApp() *FarmApp {
	log.SetFlags(0)
	var logger *slog.Logger
	if term.IsTerminal(int(os.Stdout.Fd())) {
		// Output is a tty - we're being run as CLI vs as a daemon
		logger = slog.New(misc.NewMinimalHandler(os.Stdout,
			misc.MinimalHandlerOptions{SlogOpts: slog.HandlerOptions{Level: logLevel, AddSource: true}}))
	} else {
		// not on console - output as json, but change json key names to be more
		// compatible w/ what google logging expects
		opts := &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.MessageKey {
					a.Key = "message"
				} else if a.Key == slog.LevelKey && len(groups) == 0 {
					a.Key = "severity"
				}
				return a
			},
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	appConfig := &FarmApp{logger: logger}

	appConfig.cliCmd = &cli.Command{
		Name:    "umi-farmd",
		Usage:   "Staking ledger daemon and companion CLI for umi token and LP NFT farms",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			return appConfig.initEngine(ctx, cmd)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("FARM_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "yaml config file describing tokens, accounts and listen address",
				Value:   "farm.yaml",
				Aliases: []string{"c"},
				Sources: cli.EnvVars("FARM_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "caller",
				Usage:   "account to act as for CLI verbs",
				Sources: cli.EnvVars("FARM_CALLER"),
			},
		},
		Commands: []*cli.Command{
			GetDaemonCmdOpts(),
			GetFarmCmdOpts(),
			GetBoostCmdOpts(),
			GetMintCmdOpts(),
			GetConvertCmdOpts(),
		},
	}
	return appConfig
}

type FarmApp struct {
	cliCmd *cli.Command
	logger *slog.Logger
	cfg    *FarmConfig
	engine *Engine
}

func (ac *FarmApp) initEngine(ctx context.Context, cmd *cli.Command) error {
	if envfile := cmd.String("envfile"); envfile != "" {
		misc.Infof(ac.logger, "loading env file:%s", envfile)
		if err := misc.LoadEnvFile(envfile); err != nil {
			return err
		}
	}

	cfgPath := cmd.String("config")
	// the default config file is optional, an explicitly named one is not
	if cfgPath == "farm.yaml" {
		if _, err := os.Stat(cfgPath); err != nil {
			cfgPath = ""
		}
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	ac.cfg = cfg

	engine, err := newEngine(ac.logger, cfg)
	if err != nil {
		return err
	}
	ac.engine = engine
	return nil
}

// caller resolves the acting account for CLI verbs, defaulting to the owner.
func (ac *FarmApp) caller(cmd *cli.Command) string {
	if caller := cmd.String("caller"); caller != "" {
		return caller
	}
	return ac.cfg.Owner
}
