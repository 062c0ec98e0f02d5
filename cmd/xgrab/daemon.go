package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/daemon"
	"github.com/1broseidon/xgrab/internal/displayenv"
	"github.com/1broseidon/xgrab/internal/hotkeys"
	"github.com/1broseidon/xgrab/internal/runtimepath"
	"github.com/1broseidon/xgrab/internal/x11"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/xgrab/config.yaml)")
	socket := fs.String("socket", "", "Socket path (default: $XDG_RUNTIME_DIR/xgrab.sock)")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: xgrab daemon [--path PATH] [--socket PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keep a display connection open and serve captures over a unix socket.")
		fmt.Fprintln(os.Stderr, "SIGHUP reloads the configuration.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	logger, closeLog, err := newLogger(cfg, *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	override := *socket
	if override == "" {
		override = cfg.Daemon.Socket
	}
	socketPath, err := runtimepath.ResolveSocket(override)
	if err != nil {
		logger.Error("failed to resolve IPC socket path", "error", err)
		return 1
	}

	identifier, err := displayenv.Setup(cfg.Display)
	if err != nil {
		logger.Error("no display", "error", err)
		return exitCode(err)
	}
	cfg.Display = identifier

	d, err := daemon.New(daemon.Options{
		Config: cfg,
		Dial:   x11.Dial,
		Load: func() (*config.Config, error) {
			return loadConfig(*path)
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to open display", "display", identifier, "error", err)
		return exitCode(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				logger.Info("received SIGHUP, reloading config")
				if err := d.Reload(); err != nil {
					logger.Warn("config reload failed", "error", err)
					continue
				}
				logger.Info("config reloaded")
			default:
				cancel()
				return
			}
		}
	}()

	if cfg.Daemon.Hotkey != "" {
		listener, err := hotkeys.NewListener(identifier, logger)
		if err != nil {
			logger.Warn("hotkey disabled", "error", err)
		} else if err := listener.Register(cfg.Daemon.Hotkey, func() {
			if _, err := d.Snapshot(time.Now()); err != nil {
				logger.Warn("hotkey capture failed", "error", err)
			}
		}); err != nil {
			logger.Warn("hotkey disabled", "error", err)
			listener.Close()
		} else {
			go listener.Run(ctx)
		}
	}

	logger.Info("xgrab daemon started", "display", identifier, "socket", socketPath)
	if err := d.Run(ctx, socketPath); err != nil {
		logger.Error("daemon stopped", "error", err)
		return 1
	}
	return 0
}
