package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/server"
)

func main() {
	configFile := flag.String("config", "", "Application file (YAML or TOML), overrides COLLECTOR_CONFIG_FILE")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *configFile != "" {
		cfg.ConfigFile = *configFile
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	app, err := config.LoadApplication(cfg.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load application file: %v", err)
	}

	collector, err := server.New(cfg, app)
	if err != nil {
		log.Fatalf("Failed to create collector: %v", err)
	}
	logger := collector.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := collector.Start(ctx); err != nil {
		logger.Error("Collector failed to start", zap.Error(err))
		shutdown(collector, cfg)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	if err := shutdown(collector, cfg); err != nil {
		os.Exit(1)
	}
}

func shutdown(collector *server.Collector, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return collector.Close(ctx)
}
