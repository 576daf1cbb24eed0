package events

import (
	"context"

	"github.com/yanun0323/decimal"

	"main/internal/broker"
)

// Publisher wraps a broker with fixed-shape domain publishes.
type Publisher struct {
	broker *broker.Broker
}

// NewPublisher creates a publisher over the given broker.
func NewPublisher(b *broker.Broker) *Publisher {
	return &Publisher{broker: b}
}

// PublishTradeSignal publishes a strategy recommendation.
func (p *Publisher) PublishTradeSignal(ctx context.Context, symbol, side string, confidence float64, strategy string) bool {
	return p.broker.Publish(ctx, TopicTradeSignals, map[string]any{
		"type":       typeTradeSignal,
		"symbol":     symbol,
		"side":       side,
		"confidence": confidence,
		"strategy":   strategy,
	})
}

// PublishPriceUpdate publishes one observed market price.
func (p *Publisher) PublishPriceUpdate(ctx context.Context, symbol string, price decimal.Decimal, at string) bool {
	return p.broker.Publish(ctx, TopicPriceUpdates, map[string]any{
		"type":   typePriceUpdate,
		"symbol": symbol,
		"price":  price.String(),
		"time":   at,
	})
}

// PublishRiskAlert publishes a risk condition.
func (p *Publisher) PublishRiskAlert(ctx context.Context, kind, message, severity string) bool {
	return p.broker.Publish(ctx, TopicRiskAlerts, map[string]any{
		"type":       typeRiskAlert,
		"alert_type": kind,
		"message":    message,
		"severity":   severity,
	})
}

// PublishPerformanceMetrics publishes a metrics snapshot mapping.
func (p *Publisher) PublishPerformanceMetrics(ctx context.Context, metrics map[string]any) bool {
	return p.broker.Publish(ctx, TopicPerformanceMetrics, map[string]any{
		"type":    typePerformanceMetrics,
		"metrics": metrics,
	})
}
