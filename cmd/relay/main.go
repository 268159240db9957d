package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	signalrelay "castdeck/internal/infrastructure/signal"
	"castdeck/pkg/config"
	"castdeck/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	connsPerMin := 0
	if cfg.RateLimiting.Enabled {
		connsPerMin = cfg.RateLimiting.RelayConnsPerMin
	}

	relay := signalrelay.NewRelayServer(signalrelay.RelayConfig{
		PingInterval:   cfg.Relay.PingInterval,
		PongTimeout:    cfg.Relay.PongTimeout,
		ConnsPerMinute: connsPerMin,
	}, log)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", gin.WrapF(relay.HandleWebSocket))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"peers":     relay.PeerCount(),
		})
	})

	srv := &http.Server{
		Addr:        cfg.Relay.Address,
		Handler:     router,
		ReadTimeout: cfg.API.ReadTimeout,
		// No WriteTimeout: websocket connections outlive any sane value.
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting castdeck relay on %s", cfg.Relay.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Relay failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during relay shutdown", "error", err)
	}
	log.Info("castdeck relay stopped")
}
