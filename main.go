package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quant-core/internal/api"
	"quant-core/internal/app"
	"quant-core/internal/backtest"
	"quant-core/internal/events"
	"quant-core/internal/market"
	"quant-core/internal/monitor"
	"quant-core/internal/persistence"
	"quant-core/internal/recommend"
	"quant-core/internal/store"
	"quant-core/internal/strategy"
	"quant-core/internal/universe"
	"quant-core/pkg/cache"
	"quant-core/pkg/config"
	"quant-core/pkg/crypto"
	"quant-core/pkg/i18n"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}

	i18n.SetLanguage(i18n.Language(cfg.Language))
	log.Println(i18n.Get("Starting"))
	log.Printf(i18n.Get("ConfigLoaded"), cfg.Port)
	log.Printf(i18n.Get("UsingDBPath"), cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf(i18n.Get("DBInitFailed"), err)
	}
	defer st.Close()
	if err := store.ApplyMigrations(st); err != nil {
		log.Fatalf(i18n.Get("DBMigrationsFailed"), err)
	}

	memCache := cache.NewShardedCache()

	sysMetrics := monitor.NewSystemMetrics()
	log.Println(i18n.Get("SystemMetricsInit"))

	mon := &monitor.Monitor{Bus: bus, AlertFn: func(msg string) {
		_ = monitor.LogSink{}.Send(msg)
	}}
	mon.Start(ctx)

	// Stock universe from YAML, synced into the store
	if refs, err := universe.Load(cfg.StocksFile); err != nil {
		log.Printf(i18n.Get("UniverseLoadFailed"), err)
	} else {
		log.Printf(i18n.Get("UniverseLoaded"), len(refs), cfg.StocksFile)
		if err := universe.Sync(ctx, st, refs); err != nil {
			log.Printf(i18n.Get("UniverseSyncFailed"), err)
		}
	}

	// Quote provider and write-behind persistence for bar syncs
	provider := market.NewProvider(cfg.QuoteBaseURL, cfg.QuoteRatePerSec, time.Duration(cfg.QuoteTimeoutSec)*time.Second)
	writer := persistence.NewBatchWriter(st.DB, 200, 500*time.Millisecond)
	defer writer.Close()

	// Strategy engine plumbing
	growth := strategy.NewGrowthChecker(st, memCache)
	sim := backtest.NewSimulator(st, st, st, growth, bus, sysMetrics)
	scanner := recommend.NewScanner(st, st, growth, bus, sysMetrics)

	service := app.NewService(cfg, st, memCache, bus, sysMetrics, provider, writer, sim, scanner)
	if cfg.EncryptionKey != "" {
		enc, err := crypto.NewFromBase64(cfg.EncryptionKey)
		if err != nil {
			log.Fatalf(i18n.Get("EncryptionKeyInvalid"), err)
		}
		service.SetCipher(enc)
	}

	// API
	server := api.NewServer(service, st, bus, sysMetrics, cfg)
	go func() {
		log.Printf(i18n.Get("ServerListening"), cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf(i18n.Get("APIServerError"), err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println(i18n.Get("ShuttingDown"))
}
