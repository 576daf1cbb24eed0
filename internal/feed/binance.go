// Package feed streams live market prices from the exchange websocket
// and republishes them onto the price_updates topic.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/events"
)

const _binanceBaseWsUrl = "wss://stream.binance.com:9443/ws"

// Binance streams mini-ticker updates and forwards them as price updates.
type Binance struct {
	wss *ws.WebSocket
	pub *events.Publisher
}

// NewBinance creates a feed publishing through the given publisher.
func NewBinance(ctx context.Context, pub *events.Publisher) *Binance {
	return &Binance{
		wss: ws.New(ctx, _binanceBaseWsUrl),
		pub: pub,
	}
}

func (f *Binance) Close() {
	f.wss.Close()
}

// StartWebsocket opens the stream connection.
func (f *Binance) StartWebsocket(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscriberResponseParser(m ws.Message) (binanceSubscribeResponse, bool) {
	var resp binanceSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// SubscribeTicker subscribes 'Individual Symbol Mini Ticker Stream'
func (f *Binance) SubscribeTicker(ctx context.Context, symbol string) error {
	appendIntoRegister := true
	if err := f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@miniTicker", strings.ToLower(symbol)),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscriberResponseParser(m)
			if !ok || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type binanceMiniTicker struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	Close     decimal.Decimal `json:"c"`
}

// Observe forwards ticks onto the price_updates topic until the context
// is done. Malformed frames are dropped; publish results are handled by
// the broker.
func (f *Binance) Observe(ctx context.Context) (unsubscribe func()) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				tick, ok := ws.ReadMessage[binanceMiniTicker](m)
				if !ok || tick.EventType != "24hrMiniTicker" {
					continue
				}

				at := time.UnixMilli(tick.EventTime).UTC().Format(time.RFC3339Nano)
				if !f.pub.PublishPriceUpdate(ctx, tick.Symbol, tick.Close, at) {
					logs.Warnf("feed: price update for %s not published", tick.Symbol)
				}
			}
		}
	}()

	return cancel
}
