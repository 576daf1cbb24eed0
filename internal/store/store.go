// Package store persists signal and alert history in PostgreSQL. The
// database is an unreliable remote dependency: callers route every
// operation through the "database" circuit breaker.
package store

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/events"
	"main/pkg/exception"
)

// SignalRecord is one persisted trade signal.
type SignalRecord struct {
	ID         uint      `gorm:"primaryKey"`
	Symbol     string    `gorm:"index"`
	Side       string
	Confidence float64
	Strategy   string
	CreatedAt  time.Time
}

// AlertRecord is one persisted risk alert.
type AlertRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Kind      string `gorm:"index"`
	Message   string
	Severity  string
	CreatedAt time.Time
}

// Store wraps the history tables.
type Store struct {
	db *gorm.DB
}

// New migrates the history tables and returns a store.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, exception.ErrStoreNilGorm
	}
	if err := db.AutoMigrate(&SignalRecord{}, &AlertRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate history tables")
	}
	return &Store{db: db}, nil
}

// SaveSignal appends one trade signal to the history.
func (s *Store) SaveSignal(ctx context.Context, sig events.TradeSignal) error {
	record := SignalRecord{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Confidence: sig.Confidence,
		Strategy:   sig.Strategy,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrap(err, "save signal").With("symbol", sig.Symbol)
	}
	return nil
}

// SaveAlert appends one risk alert to the history.
func (s *Store) SaveAlert(ctx context.Context, alert events.RiskAlert) error {
	record := AlertRecord{
		Kind:     alert.Kind,
		Message:  alert.Message,
		Severity: alert.Severity,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrap(err, "save alert").With("kind", alert.Kind)
	}
	return nil
}

// RecentSignals returns the newest signals, most recent first.
func (s *Store) RecentSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		return nil, exception.ErrStoreBadRequest
	}
	var records []SignalRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "load recent signals")
	}
	return records, nil
}
