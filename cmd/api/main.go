package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studiofront/internal/gateway"
	"studiofront/internal/http/handlers"
	"studiofront/internal/http/httpapi"
	"studiofront/internal/infra"
	"studiofront/internal/jobclient"
	"studiofront/internal/ledger"
	"studiofront/internal/routegate"
	"studiofront/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	sessions := session.NewStore(session.Options{
		CookieName: cfg.SessionCookieName,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.AppEnv != "development",
	})

	led, err := ledger.Open(cfg.LedgerDBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open job ledger")
	}
	defer led.Close()

	transport := jobclient.NewTransport(jobclient.TransportOptions{
		BaseURL:     cfg.BackendBaseURL,
		Credentials: sessions,
	})
	jobs := jobclient.NewManager(jobclient.ManagerConfig{
		Transport:                transport,
		Ledger:                   led,
		PollTimeout:              cfg.PollTimeout,
		PollInterval:             cfg.PollInterval,
		SimulateOnTransportError: cfg.SimulateOnTransportError,
		Logger:                   logger,
	})

	gate := routegate.New(routegate.Options{
		Rules:       routegate.DefaultRules(cfg.GatewayPrefix),
		APIPrefixes: []string{"/api/", cfg.GatewayPrefix + "/"},
		LoginPath:   "/login",
		Credentials: sessions,
	})
	proxy := gateway.New(gateway.Options{
		BackendBaseURL: cfg.BackendBaseURL,
		Prefix:         cfg.GatewayPrefix,
		Logger:         logger,
	})

	app := &handlers.App{
		Config:    cfg,
		Logger:    logger,
		Sessions:  sessions,
		Jobs:      jobs,
		Transport: transport,
	}
	router := httpapi.NewRouter(app, gate, proxy)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("studiofront listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
