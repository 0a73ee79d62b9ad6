// Binary executor receives TradingView webhook signals and turns them into
// weighted-average-priced limit orders on the configured exchanges.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/thana249/tradingview-executor/internal/config"
	"github.com/thana249/tradingview-executor/internal/dispatch"
	"github.com/thana249/tradingview-executor/internal/exchange"
	"github.com/thana249/tradingview-executor/internal/metrics"
	"github.com/thana249/tradingview-executor/internal/notify"
	"github.com/thana249/tradingview-executor/internal/server"
	"github.com/thana249/tradingview-executor/internal/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		log.Fatal().Msg("WEBHOOK_SECRET is not set")
	}

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clients := buildClients(cfg, log)
	if len(clients) == 0 {
		log.Fatal().Msg("no exchange clients wired, check credentials")
	}

	notifier := notify.NewLine(os.Getenv("LINE_NOTIFY_TOKEN"), log)
	disp := dispatch.New(cfg, secret, clients, notifier, log)

	srv := &http.Server{
		Addr:              cfg.App.ListenAddr,
		Handler:           server.New(disp, disp, notifier, log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.App.ListenAddr).Msg("webhook server up")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("webhook server stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildClients wires one adapter per configured exchange. Venues without
// credentials are skipped with a warning rather than failing startup, so a
// partial deployment keeps alerting for the rest. In the paper environment
// every venue is replaced by an in-process stub.
func buildClients(cfg *config.Config, log zerolog.Logger) map[string]exchange.Client {
	clients := make(map[string]exchange.Client, len(cfg.Exchanges))
	for name := range cfg.Exchanges {
		if cfg.App.Env == "paper" {
			paper := exchange.NewPaper(100, 0.05)
			paper.Deposit(cfg.Exchanges[name].BaseAsset, cfg.Order.Notional*10)
			clients[name] = paper
			continue
		}

		creds := exchange.Credentials{
			Key:        os.Getenv(name + "_API_KEY"),
			Secret:     os.Getenv(name + "_API_SECRET"),
			Passphrase: os.Getenv(name + "_PASSPHRASE"),
		}
		if creds.Key == "" || creds.Secret == "" {
			log.Warn().Str("exchange", name).Msg("missing API credentials, skipping")
			continue
		}

		switch name {
		case "BINANCE":
			clients[name] = exchange.NewBinance(creds, log)
		case "FTX":
			clients[name] = exchange.NewFTX(creds, log)
		case "KUCOIN":
			clients[name] = exchange.NewKuCoin(creds, log)
		default:
			log.Warn().Str("exchange", name).Msg("no adapter for configured exchange")
		}
	}
	return clients
}
