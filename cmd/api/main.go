package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/estate-desk/backend/internal/config"
	"github.com/zhouzirui/estate-desk/backend/internal/handler"
	inboxhandler "github.com/zhouzirui/estate-desk/backend/internal/handler/inbox"
	"github.com/zhouzirui/estate-desk/backend/internal/service/ai"
	"github.com/zhouzirui/estate-desk/backend/internal/service/backend"
	"github.com/zhouzirui/estate-desk/backend/internal/service/inbox"
	"github.com/zhouzirui/estate-desk/backend/internal/service/realtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if expiry, ok := cfg.Transport.TokenExpiry(); ok && time.Until(expiry) < 24*time.Hour {
		logger.Warn("Operator token expires soon", "expires_at", expiry)
	}

	// 初始化实时通道与后端客户端
	channelOpts := realtime.DefaultOptions()
	channelOpts.URL = cfg.Transport.URL
	channelOpts.Token = cfg.Transport.Token
	channelOpts.TokenParam = cfg.Transport.TokenParam
	channelOpts.MinBackoff = cfg.Transport.MinBackoff
	channelOpts.MaxBackoff = cfg.Transport.MaxBackoff
	channelOpts.PingInterval = cfg.Transport.PingInterval
	channelOpts.PongWait = cfg.Transport.PongWait
	channel := realtime.NewChannel(logger.With("component", "realtime"), channelOpts)

	backendClient := backend.NewClient(logger.With("component", "backend"), backend.Options{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	})

	controller := inbox.NewController(logger.With("component", "inbox"), channel, backendClient, backendClient)
	if err := controller.Start(ctx); err != nil {
		log.Fatalf("failed to start inbox: %v", err)
	}
	defer controller.Stop()

	// 初始化回复助手
	var assistant inboxhandler.Assistant
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, logger.With("component", "ai"), cfg.AI)
		if err != nil {
			logger.Warn("Reply assistant unavailable, check the Ark model settings", "error", err)
		} else {
			assistant = aiService
			logger.Info("Reply assistant initialized")
		}
	} else {
		logger.Info("Ark credentials not configured, reply suggestions disabled")
	}

	router := handler.NewRouter(logger.With("component", "http"), cfg.Server.Origins(), controller, assistant)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		// streams end with the process context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	slog.Info("Estate desk inbox listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("Server error", "error", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
