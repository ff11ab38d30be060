package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/modhost/internal/host"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (environment is ignored when set)")
	content := flag.String("content", "", "Content page, overrides config")
	mods := flag.String("mods", "", "Extension directory, overrides config")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "modhost: %v\n", err)
		os.Exit(2)
	}
	if *content != "" {
		cfg.Window.ContentPath = *content
	}
	if *mods != "" {
		cfg.Extensions.Dir = *mods
	}
	if *dev {
		cfg.Logging.Development = true
	}

	logger := logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	h, err := host.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create host", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := h.Run(ctx); err != nil {
		logger.Error("host exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
