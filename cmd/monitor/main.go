package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/internal/breaker"
	"main/internal/broker"
	"main/internal/cache"
	"main/internal/events"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/store"
	"main/pkg/conn"
	"main/pkg/exception"
)

const stopTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Printf("monitor: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	metrics := obs.NewMetrics()

	var transport broker.Transport
	if cfg.Redis.Enabled {
		transport = broker.NewRedisTransport(conn.NewRedis(cfg.RedisOption()))
	}
	bk := broker.New(transport, broker.Config{
		Source:        "monitor-service",
		FallbackDepth: cfg.Broker.FallbackDepth,
	}, metrics)
	bk.Connect(ctx)

	var priceCache *cache.Cache
	if cfg.Redis.Enabled {
		priceCache = cache.New(conn.NewRedis(cfg.CacheRedisOption()), cfg.CacheConfigValue(), metrics)
	} else {
		priceCache = cache.New(nil, cfg.CacheConfigValue(), metrics)
	}
	priceCache.Connect(ctx)

	var history *store.Store
	dbBreaker := breaker.New(cfg.BreakerFor(ops.BreakerDatabase), metrics)
	if cfg.Postgres.Enabled {
		pg, err := conn.NewPG(cfg.PGOption())
		if err != nil {
			return err
		}
		defer pg.Close()
		history, err = store.New(pg.DB())
		if err != nil {
			return err
		}
	}

	subs := []*broker.Subscription{
		bk.Subscribe(ctx, events.TopicTradeSignals, func(m broker.Message) {
			sig, ok := events.ParseTradeSignal(m)
			if !ok {
				return
			}
			log.Printf("signal %s %s confidence=%.2f strategy=%s", sig.Side, sig.Symbol, sig.Confidence, sig.Strategy)
			saveHistory(ctx, history, dbBreaker, func(c context.Context) error {
				return history.SaveSignal(c, sig)
			})
		}),
		bk.Subscribe(ctx, events.TopicRiskAlerts, func(m broker.Message) {
			alert, ok := events.ParseRiskAlert(m)
			if !ok {
				return
			}
			log.Printf("risk alert [%s] %s: %s", alert.Severity, alert.Kind, alert.Message)
			saveHistory(ctx, history, dbBreaker, func(c context.Context) error {
				return history.SaveAlert(c, alert)
			})
		}),
		bk.Subscribe(ctx, events.TopicPriceUpdates, func(m broker.Message) {
			update, ok := events.ParsePriceUpdate(m)
			if !ok {
				return
			}
			priceCache.Set(ctx, "price:"+update.Symbol, update.Price.String(), time.Minute)
		}),
		bk.Subscribe(ctx, events.TopicPerformanceMetrics, func(m broker.Message) {
			if metricsField, ok := m.Field("metrics"); ok {
				log.Printf("performance metrics: %v", metricsField)
			}
		}),
	}

	<-ctx.Done()

	for _, sub := range subs {
		if sub == nil {
			continue
		}
		sub.Stop()
		select {
		case <-sub.Done():
		case <-time.After(stopTimeout):
			log.Printf("subscription %s did not stop in time", sub.Topic())
		}
	}

	stats := priceCache.Stats()
	log.Printf("cache stats: hits=%d misses=%d evictions=%d", stats.Hits, stats.Misses, stats.Evictions)
	return nil
}

// saveHistory routes one write through the database breaker. An open
// breaker only skips the write; the subscription keeps consuming.
func saveHistory(ctx context.Context, history *store.Store, db *breaker.Breaker, write func(context.Context) error) {
	if history == nil {
		return
	}
	err := db.Do(func() error {
		c, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return write(c)
	})
	if err != nil {
		if errors.Is(err, exception.ErrBreakerOpen) {
			log.Printf("history write skipped: database circuit open")
			return
		}
		log.Printf("history write failed: %v", err)
	}
}
