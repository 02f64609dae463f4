package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-enginev1/config"
	"signal-enginev1/internal/api"
	"signal-enginev1/internal/engine"
	"signal-enginev1/internal/execution"
	"signal-enginev1/internal/lifecycle"
	"signal-enginev1/internal/logger"
	binancemd "signal-enginev1/internal/marketdata/binance"
	"signal-enginev1/internal/metrics"
	"signal-enginev1/internal/notification"
	"signal-enginev1/internal/oracle"
	redisstore "signal-enginev1/internal/store/redis"
	sqlitestore "signal-enginev1/internal/store/sqlite"
	"signal-enginev1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[sigengine] starting...")

	cfg := config.Load()
	logger.Init("sigengine", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	symbols := cfg.ParseSymbols()
	timeframes := cfg.ParseTimeframes()
	log.Printf("[sigengine] symbols: %v, timeframes: %v", symbols, timeframes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Storage ----
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[sigengine] sqlite init failed: %v", err)
	}
	defer store.Close()
	if err := store.SeedBuiltinStrategies(ctx); err != nil {
		log.Fatalf("[sigengine] strategy seed failed: %v", err)
	}

	// ---- Price cache (optional: engine degrades to REST pulls) ----
	cache, err := redisstore.NewPriceCache(redisstore.PriceCacheConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		slog.Warn("redis unavailable, running without price cache", "err", err)
		cache = nil
	}

	// ---- Market data ----
	provider := binancemd.NewProvider(cfg.BinanceAPIKey, cfg.BinanceSecretKey)
	if cache != nil {
		stream := binancemd.NewStream(symbols, cache)
		go stream.Run(ctx)
	}

	var px *oracle.Oracle
	if cache != nil {
		px = oracle.New(cache, provider)
	} else {
		px = oracle.New(nil, provider)
	}

	// ---- Lifecycle + execution ----
	manager := lifecycle.NewManager(store, px)
	paper := execution.NewPaperEngine(store, cfg.TradeQuantity, cfg.TradeLeverage)
	hub := api.NewHub()

	notifiers := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	alerter := notification.NewSignalAlerter(notification.NewMulti(notifiers...))

	// Paper trades first so the stream and alerts see settled state.
	manager.AddListener(paper)
	manager.AddListener(hub)
	manager.AddListener(alerter)

	// ---- Engine ----
	guard := lifecycle.NewDupGuard(store, lifecycle.DefaultLookbackCandles)
	runner := strategy.NewRunner(0)
	met := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	paper.SetMetrics(met)

	eng := engine.New(engine.Config{
		Symbols:           symbols,
		Timeframes:        timeframes,
		CandleLimit:       cfg.CandleLimit,
		ScanInterval:      cfg.ScanInterval,
		MonitorInterval:   cfg.MonitorInterval,
		RetentionInterval: cfg.RetentionInterval,
		RetentionDays:     cfg.RetentionDays,
	}, provider, store, store, runner, guard, manager, met, health)

	// ---- Observability ----
	if cache != nil {
		health.StartLivenessChecker(ctx, cache.Client(), store.DB(), 15*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 15*time.Second)
	}
	go metrics.Serve(ctx, cfg.MetricsAddr, health)

	// ---- Control API ----
	server := api.NewServer(eng, manager, store, store, store, hub, health)
	httpSrv := &http.Server{Addr: cfg.APIAddr, Handler: server.Router()}
	go func() {
		log.Printf("[sigengine] api listening on %s", cfg.APIAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[sigengine] api server: %v", err)
		}
	}()

	eng.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[sigengine] shutting down...")

	eng.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)

	if cache != nil {
		cache.Close()
	}
	log.Println("[sigengine] bye")
}
