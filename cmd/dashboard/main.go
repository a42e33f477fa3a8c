package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dialwatch/dialwatch/config"
	"github.com/dialwatch/dialwatch/dashboard"
	"github.com/dialwatch/dialwatch/dispatch"
	"github.com/dialwatch/dialwatch/registry"
	"github.com/dialwatch/dialwatch/telephony"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := newLogger(cfg.Mode)
	defer logger.Sync()

	driver, err := telephony.NewDiagoDriver(logger.Named("telephony"), telephony.DiagoOptions{
		Transport:  cfg.SIPTransport,
		ListenAddr: cfg.SIPListenAddr,
		Port:       cfg.SIPPort,
	})
	if err != nil {
		logger.Fatal("building SIP driver", zap.Error(err))
	}

	dispatcher := dispatch.NewClient(logger.Named("dispatch"), cfg.DispatchURL, cfg.DispatchAPIKey, cfg.DispatchAPISecret)
	reg := registry.New(logger.Named("registry"), driver, dispatcher, cfg.AgentName,
		registry.WithTrunk(cfg.Trunk()))

	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	dashboard.NewServer(logger.Named("dashboard"), reg).Register(engine)

	srv := &http.Server{Addr: cfg.Addr, Handler: engine}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("dashboard listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(mode string) *zap.Logger {
	if mode == "production" {
		logger, err := zap.NewProduction()
		if err != nil {
			log.Fatalf("building logger: %v", err)
		}
		return logger
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	return logger
}
