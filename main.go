/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/novus/engine"
	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/testbed"
)

func main() {
	configPath := flag.String("config", "novus.toml", "path to the TOML configuration")
	initConfig := flag.Bool("init-config", false, "write the default configuration to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := core.WriteConfig(*configPath, core.DefaultConfig()); err != nil {
			core.NewLogger(os.Stderr, core.LogConfig{Level: "info"}).Fatal("writing config", "err", err)
		}
		return
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.NewLogger(os.Stderr, core.LogConfig{Level: "info"}).Fatal("loading config", "path", *configPath, "err", err)
	}
	logger := core.NewLogger(os.Stderr, cfg.Log)

	// signal context to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg, *configPath, logger); err != nil {
		logger.Fatal("engine stopped", "err", err)
	}
}

func run(ctx context.Context, cfg *core.Config, configPath string, logger *core.Logger) (err error) {
	app := testbed.NewBoxesApp(cfg, logger)
	e, err := engine.New(app.Game, engine.NewWindow(cfg, logger), configPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := e.Shutdown(); err == nil {
			err = shutdownErr
		}
	}()

	if err := e.Initialize(); err != nil {
		return err
	}
	return e.Run(ctx)
}
