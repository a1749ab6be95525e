package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/stratumhq/agentconsole/internal/api"
	"github.com/stratumhq/agentconsole/internal/config"
	"github.com/stratumhq/agentconsole/internal/logging"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		ToFile: cfg.Logging.ToFile,
		Dir:    cfg.Logging.Dir,
	})

	server, err := api.NewServer(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize server")
	}

	stopWatch, err := config.Watch(*configPath, func(next *config.Config) {
		// Logging settings take effect immediately; endpoint changes
		// require a restart.
		logging.Setup(logging.Options{
			Level:  next.Logging.Level,
			ToFile: next.Logging.ToFile,
			Dir:    next.Logging.Dir,
		})
	})
	if err != nil {
		log.WithError(err).Warn("config hot reload unavailable")
	} else {
		defer stopWatch()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server stopped")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
}
