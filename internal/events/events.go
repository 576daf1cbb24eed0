// Package events names the platform topics and provides typed publish
// helpers over the broker. The helpers are convenience sugar: every
// payload is a flat mapping of scalar fields with a "type" discriminator
// so it round-trips losslessly through the envelope.
package events

import (
	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"

	"main/internal/broker"
)

const (
	TopicTradeSignals       = "trade_signals"
	TopicPriceUpdates       = "price_updates"
	TopicRiskAlerts         = "risk_alerts"
	TopicPerformanceMetrics = "performance_metrics"
)

const (
	typeTradeSignal        = "trade_signal"
	typePriceUpdate        = "price_update"
	typeRiskAlert          = "risk_alert"
	typePerformanceMetrics = "performance_metrics"
)

// TradeSignal is a strategy buy/sell recommendation.
type TradeSignal struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`
}

// PriceUpdate is one observed market price.
type PriceUpdate struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Time   string          `json:"time"`
}

// RiskAlert flags a risk condition for the executor and notifier.
type RiskAlert struct {
	Kind     string `json:"alert_type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func parse[T any](m broker.Message, kind string) (T, bool) {
	var out T
	if v, _ := m.Field("type"); v != kind {
		return out, false
	}
	raw, err := sonic.ConfigFastest.Marshal(m.Fields)
	if err != nil {
		return out, false
	}
	if err := sonic.ConfigFastest.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}

// ParseTradeSignal extracts a trade signal from a delivered message.
func ParseTradeSignal(m broker.Message) (TradeSignal, bool) {
	return parse[TradeSignal](m, typeTradeSignal)
}

// ParsePriceUpdate extracts a price update from a delivered message.
func ParsePriceUpdate(m broker.Message) (PriceUpdate, bool) {
	return parse[PriceUpdate](m, typePriceUpdate)
}

// ParseRiskAlert extracts a risk alert from a delivered message.
func ParseRiskAlert(m broker.Message) (RiskAlert, bool) {
	return parse[RiskAlert](m, typeRiskAlert)
}
