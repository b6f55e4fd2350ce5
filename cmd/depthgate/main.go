package main

import (
	"context"
	"flag"
	"os"
	"syscall"
	"time"

	"github.com/BullionBear/depthgate/internal/config"
	"github.com/BullionBear/depthgate/internal/gateway"
	"github.com/BullionBear/depthgate/pkg/logger"
	"github.com/BullionBear/depthgate/pkg/shutdown"
)

func main() {
	path := flag.String("c", "", "Path to the configuration file (defaults apply when omitted)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *path != "" {
		loaded, err := config.LoadConfig(*path)
		if err != nil {
			logger.InitLogger(true)
			logger.Log.Error().Err(err).Msg("failed to load configuration")
			os.Exit(1)
		}
		cfg = loaded
	}

	logger.InitLogger(cfg.Server.Development)
	logger.Log.Info().
		Int("port", cfg.Server.Port).
		Str("binanceBaseUrl", cfg.Binance.BaseURL).
		Str("binanceWsBaseUrl", cfg.Binance.WSBaseURL).
		Bool("natsTap", cfg.NATS != nil).
		Msg("depthgate starting")

	gw, err := gateway.New(cfg)
	if err != nil {
		logger.Log.Error().Err(err).Msg("failed to build gateway")
		os.Exit(1)
	}

	sd := shutdown.NewShutdown()
	sd.HookShutdownCallback("gateway", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		gw.Shutdown(ctx)
	}, 2*time.Second)

	go func() {
		if err := gw.Run(sd.Context()); err != nil {
			logger.Log.Error().Err(err).Msg("server exited")
			os.Exit(1)
		}
	}()

	sd.WaitForShutdown(syscall.SIGINT, syscall.SIGTERM)
}
