package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/webdc/firstblood/internal/config"
	"github.com/webdc/firstblood/internal/notifier"
	"github.com/webdc/firstblood/pkg/logx"
)

// Startup exit codes, one per failure category.
const (
	exitConfigLoad   = 1
	exitConfigMiss   = 2
	exitTelegramInit = 4
)

// main boots the notifier: config → telegram → poll loop.
func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to yaml config (optional; env FB_* overrides)")
	flag.Parse()

	boot := logx.New("info")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.Error("config load failed", logx.Err(err))
		os.Exit(exitConfigLoad)
	}
	if err := cfg.ValidateBot(); err != nil {
		boot.Error("config incomplete", logx.Err(err))
		os.Exit(exitConfigMiss)
	}

	log := logx.New(cfg.LogLevel)

	dispatcher, err := notifier.NewTelegramDispatcher(
		cfg.Bot.TelegramToken, cfg.Bot.ChannelID, cfg.Bot.ThumbnailURL,
		log.With(logx.String("component", "telegram")),
	)
	if err != nil {
		log.Error("telegram init failed", logx.Err(err))
		os.Exit(exitTelegramInit)
	}
	log.Info("connected to telegram", logx.Int64("channel_id", cfg.Bot.ChannelID))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := dispatcher.Announce(ctx, cfg.Bot.StartupText); err != nil {
		log.Warn("startup note failed", logx.Err(err))
	}

	client := notifier.NewClient(cfg.Bot.APIBaseURL, cfg.Token, cfg.Bot.RequestTimeout)
	poller := notifier.New(client, dispatcher, cfg.Bot.PollInterval, cfg.Bot.RequestTimeout,
		log.With(logx.String("component", "poller")))

	if err := poller.Run(ctx); err != nil {
		log.Error("poller failed", logx.Err(err))
		os.Exit(1)
	}
	log.Info("poller stopped")
}
