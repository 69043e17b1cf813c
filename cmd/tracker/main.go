package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/roman-kulish/synchro-tracker/cmd/tracker/app"
	"github.com/roman-kulish/synchro-tracker/internal/daq"
)

func main() {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	logger := slog.New(handler)

	var configPath, logLevel string
	var listPorts bool
	pflag.StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	pflag.StringVar(&logLevel, "log-level", "", "Override the configured log level [debug, info, warn, error]")
	pflag.BoolVar(&listPorts, "list-ports", false, "List the serial ports and exit")
	pflag.Parse()

	if listPorts {
		if err := app.ListPorts(os.Stdout, daq.Ports); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	if configPath == "" {
		logger.Error("no configuration file provided")
		pflag.Usage()
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	if logLevel == "" {
		logLevel = config.Settings.LogLevel
	}
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			logger.Error(fmt.Sprintf("invalid log level: %s", err.Error()))
			os.Exit(1)
		}
		handler.SetLevel(level)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
