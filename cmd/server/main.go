package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/conf"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/injector"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	logger.SetGlobal(log)

	log.Info("config loaded successfully", zap.String("path", *configFile))

	app, cleanup, err := injector.InitializeApp(config, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Error("service exited with error", zap.Error(err))
		return
	}
	log.Info("service exited")
}
