package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/webdc/firstblood/internal/config"
	"github.com/webdc/firstblood/internal/httpserver"
	"github.com/webdc/firstblood/internal/store"
	"github.com/webdc/firstblood/pkg/logx"
)

// Startup exit codes, one per failure category.
const (
	exitConfigLoad = 1
	exitConfigMiss = 2
	exitStoreOpen  = 3
)

// main boots the record service: config → store → router → HTTP server.
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
	if err := cfg.ValidateAPI(); err != nil {
		boot.Error("config incomplete", logx.Err(err))
		os.Exit(exitConfigMiss)
	}

	log := logx.New(cfg.LogLevel)

	st, err := store.Open(cfg.API.DBPath, log.With(logx.String("component", "store")))
	if err != nil {
		log.Error("store open failed", logx.Err(err), logx.String("path", cfg.API.DBPath))
		os.Exit(exitStoreOpen)
	}
	defer st.Close()

	router := httpserver.NewRouter(cfg, st, log.With(logx.String("component", "http")))
	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("server started", logx.String("addr", cfg.API.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", logx.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("server stopped")
}
