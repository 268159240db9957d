package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/services"
	httphandlers "castdeck/internal/handlers/http"
	"castdeck/internal/infrastructure/capture"
	"castdeck/internal/infrastructure/middleware"
	"castdeck/internal/infrastructure/monitoring"
	repositories "castdeck/internal/infrastructure/repositories"
	"castdeck/internal/infrastructure/transport"
	"castdeck/pkg/config"
	"castdeck/pkg/logger"
	"castdeck/pkg/tracing"
	"castdeck/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	roomID := flag.String("room", "", "room id to broadcast under (generated when empty)")
	userID := flag.String("user", "", "owner user id (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	roomRepo := repoFactory.CreateRoomRepository()
	sourceRepo := repoFactory.CreateSourceRepository()

	store := services.NewRoomStore(roomRepo, sourceRepo, log)
	binding := capture.NewBinding(cfg.Capture.Devices, log)
	collector := monitoring.NewPrometheusCollector()

	var iceServers []webrtc.ICEServer
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	qualityHints := transport.Hints{
		MaxBitrateKbps:  cfg.Quality.MaxBitrateKbps,
		MaxFrameRate:    cfg.Quality.MaxFrameRate,
		ScaleDown:       cfg.Quality.ScaleDown,
		PreferFrameRate: cfg.Quality.PreferFrameRate,
	}

	session := transport.NewSession(transport.Config{
		RelayURL:      cfg.Relay.URL,
		DialTimeout:   cfg.Relay.DialTimeout,
		GatherTimeout: cfg.WebRTC.GatherTimeout,
		ICEServers:    iceServers,
		PortRangeMin:  cfg.WebRTC.PortRange.Min,
		PortRangeMax:  cfg.WebRTC.PortRange.Max,
		Quality:       qualityHints,
	}, nil, collector, log)

	room := domain.RoomID(*roomID)
	if room == "" {
		room = domain.RoomID(utils.NewID("room"))
	}

	manager, err := services.NewSessionManager(
		room,
		domain.UserID(*userID),
		store,
		binding,
		session,
		collector,
		log,
		services.SessionConfig{
			ScreenHint: qualityHints.CaptureHint(domain.CaptureHint{
				FrameRate: cfg.Capture.FrameRate,
				Width:     cfg.Capture.Width,
				Height:    cfg.Capture.Height,
			}),
			CameraHint: qualityHints.CaptureHint(domain.CaptureHint{
				FrameRate: cfg.Capture.CameraHint,
				Width:     cfg.Capture.Width,
				Height:    cfg.Capture.Height,
			}),
			ThumbnailSettleDelay: cfg.Session.ThumbnailSettleDelay,
			ThumbnailInterval:    cfg.Session.ThumbnailInterval,
			SnapshotTimeout:      cfg.Session.SnapshotTimeout,
		},
		func(msg string) { log.Infow("session notice", "message", msg) },
	)
	if err != nil {
		log.Fatalw("failed to create session manager", "error", err, "room", room)
	}

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := manager.LoadRoom(loadCtx); err != nil {
		log.Fatalw("failed to load room", "error", err, "room", room)
	}
	loadCancel()

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	sessionHandler := httphandlers.NewSessionHandler(manager, log)
	roomHandler := httphandlers.NewRoomHandler(roomRepo, sourceRepo, log)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	router.Use(middleware.OptionalAuthMiddleware(authService))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	sessionHandler.SetupRoutes(router)
	roomHandler.SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"room":      manager.RoomID(),
		})
	})

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("repository", repoFactory.HealthCheck, 2*time.Second)

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		if status.Status != "healthy" {
			c.JSON(503, status)
			return
		}
		c.JSON(200, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.API.Address,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting castdeck broadcaster on %s (room %s)", cfg.API.Address, room)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	// Close the session last: it deactivates all sources, tears down the
	// transport and writes the final room snapshot.
	if err := manager.Close(shutdownCtx); err != nil {
		log.Errorw("Error closing session", "error", err)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("castdeck broadcaster stopped")
}
