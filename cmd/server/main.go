package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"funnelboard/internal/ads"
	"funnelboard/internal/config"
	"funnelboard/internal/crm"
	"funnelboard/internal/httpx"
	"funnelboard/internal/report"
)

func main() {
	godotenv.Load()
	cfg := config.FromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	centers, err := config.LoadCenters(cfg.CentersFile)
	if err != nil {
		logger.Error("cannot load center roster", slog.String("err", err.Error()))
		os.Exit(1)
	}

	httpc := &http.Client{Timeout: cfg.HTTPTimeout}
	crmClient := crm.New(cfg.CRMBaseURL, httpc, logger)
	adsClient := ads.New(cfg.AdsBaseURL, cfg.AdsAccessToken, httpc, logger)
	svc := report.New(centers, crmClient, adsClient, cfg.CacheTTL, cfg.BatchTimeout, logger)

	r := httpx.NewRouter(logger, svc)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server", slog.String("port", cfg.Port), slog.Int("centers", len(centers)))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
