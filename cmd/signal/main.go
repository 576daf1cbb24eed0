package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/decimal"

	"main/internal/breaker"
	"main/internal/broker"
	"main/internal/events"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/ops"
	"main/pkg/conn"
)

const _binanceTickerUrl = "https://api.binance.com/api/v3/ticker/price?symbol="

func main() {
	if err := run(); err != nil {
		log.Printf("signal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol for the demo strategy")
	interval := flag.Duration("signal-interval", 30*time.Second, "Demo strategy tick interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := os.Getenv("PYROSCOPE_URL"); addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trading/signal",
			ServerAddress:   addr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocSpace,
			},
		})
		if err != nil {
			log.Printf("pyroscope start failed: %v", err)
		} else {
			defer func() { _ = profiler.Stop() }()
		}
	}

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
		Source:        "signal-service",
		FallbackDepth: cfg.Broker.FallbackDepth,
	}, metrics)
	bk.Connect(ctx)

	pub := events.NewPublisher(bk)
	exchange := breaker.New(cfg.BreakerFor(ops.BreakerBinanceAPI), metrics)

	if cfg.Feed.Enabled {
		f := feed.NewBinance(ctx, pub)
		if err := f.StartWebsocket(ctx); err != nil {
			return err
		}
		defer f.Close()
		for _, sym := range cfg.Feed.Symbols {
			if err := f.SubscribeTicker(ctx, sym); err != nil {
				return err
			}
		}
		cancel := f.Observe(ctx)
		defer cancel()
	}

	return runStrategy(ctx, pub, exchange, metrics, *symbol, *interval)
}

// runStrategy is a deliberately thin momentum loop: its job is to
// exercise the fabric, not to trade well.
func runStrategy(ctx context.Context, pub *events.Publisher, exchange *breaker.Breaker, metrics *obs.Metrics, symbol string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		last     float64
		havePrev bool
	)
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		price, err := breaker.Call(exchange, func() (decimal.Decimal, error) {
			return fetchPrice(ctx, symbol)
		})
		if err != nil {
			log.Printf("price fetch skipped: %v", err)
			continue
		}

		at := time.Now().UTC().Format(time.RFC3339Nano)
		pub.PublishPriceUpdate(ctx, symbol, price, at)

		current, err := strconv.ParseFloat(price.String(), 64)
		if err != nil {
			log.Printf("unparsable price %q: %v", price.String(), err)
			continue
		}
		if havePrev && current != last {
			side := "SELL"
			if current > last {
				side = "BUY"
			}
			pub.PublishTradeSignal(ctx, symbol, side, 0.55, "momentum")
		}
		last, havePrev = current, true

		ticks++
		if ticks%10 == 0 {
			snap := metrics.Snapshot()
			pub.PublishPerformanceMetrics(ctx, map[string]any{
				"published":       snap.BrokerPublished,
				"publish_failed":  snap.BrokerPublishFailed,
				"delivered":       snap.BrokerDelivered,
				"short_circuited": snap.BreakerShortCircuited,
			})
		}
	}
}

type binanceTicker struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

func fetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var zero decimal.Decimal

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, _binanceTickerUrl+symbol, nil)
	if err != nil {
		return zero, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("ticker status %d", resp.StatusCode)
	}

	var tick binanceTicker
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&tick); err != nil {
		return zero, err
	}
	return tick.Price, nil
}
