package obs

import "sync/atomic"

// Metrics collects lightweight counters across the messaging fabric.
// All methods are safe on a nil receiver so wiring stays optional.
type Metrics struct {
	brokerPublished     uint64
	brokerPublishFailed uint64
	brokerDelivered     uint64
	brokerEvicted       uint64
	brokerMalformed     uint64
	callbackPanics      uint64

	breakerOpened         uint64
	breakerHalfOpened     uint64
	breakerClosed         uint64
	breakerShortCircuited uint64

	cacheHits      uint64
	cacheMisses    uint64
	cacheEvictions uint64
}

// Snapshot is a point-in-time view of every counter.
type Snapshot struct {
	BrokerPublished     uint64
	BrokerPublishFailed uint64
	BrokerDelivered     uint64
	BrokerEvicted       uint64
	BrokerMalformed     uint64
	CallbackPanics      uint64

	BreakerOpened         uint64
	BreakerHalfOpened     uint64
	BreakerClosed         uint64
	BreakerShortCircuited uint64

	CacheHits      uint64
	CacheMisses    uint64
	CacheEvictions uint64
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) add(target *uint64, delta uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(target, delta)
}

// ObservePublish counts one publish attempt and its outcome.
func (m *Metrics) ObservePublish(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.add(&m.brokerPublished, 1)
	} else {
		m.add(&m.brokerPublishFailed, 1)
	}
}

// ObserveDelivery counts one message handed to a subscriber callback.
func (m *Metrics) ObserveDelivery() { m.add(&m.brokerDelivered, 1) }

// ObserveEviction counts one message dropped from a fallback ring buffer.
func (m *Metrics) ObserveEviction() { m.add(&m.brokerEvicted, 1) }

// ObserveMalformed counts one undecodable payload dropped by a listener.
func (m *Metrics) ObserveMalformed() { m.add(&m.brokerMalformed, 1) }

// ObserveCallbackPanic counts one recovered subscriber panic.
func (m *Metrics) ObserveCallbackPanic() { m.add(&m.callbackPanics, 1) }

// ObserveBreakerOpened counts one CLOSED/HALF_OPEN to OPEN transition.
func (m *Metrics) ObserveBreakerOpened() { m.add(&m.breakerOpened, 1) }

// ObserveBreakerHalfOpened counts one OPEN to HALF_OPEN transition.
func (m *Metrics) ObserveBreakerHalfOpened() { m.add(&m.breakerHalfOpened, 1) }

// ObserveBreakerClosed counts one HALF_OPEN to CLOSED transition.
func (m *Metrics) ObserveBreakerClosed() { m.add(&m.breakerClosed, 1) }

// ObserveBreakerShortCircuit counts one call rejected while OPEN.
func (m *Metrics) ObserveBreakerShortCircuit() { m.add(&m.breakerShortCircuited, 1) }

// ObserveCacheHit counts one cache hit.
func (m *Metrics) ObserveCacheHit() { m.add(&m.cacheHits, 1) }

// ObserveCacheMiss counts one cache miss.
func (m *Metrics) ObserveCacheMiss() { m.add(&m.cacheMisses, 1) }

// ObserveCacheEviction counts one cache entry evicted before expiry.
func (m *Metrics) ObserveCacheEviction() { m.add(&m.cacheEvictions, 1) }

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		BrokerPublished:     atomic.LoadUint64(&m.brokerPublished),
		BrokerPublishFailed: atomic.LoadUint64(&m.brokerPublishFailed),
		BrokerDelivered:     atomic.LoadUint64(&m.brokerDelivered),
		BrokerEvicted:       atomic.LoadUint64(&m.brokerEvicted),
		BrokerMalformed:     atomic.LoadUint64(&m.brokerMalformed),
		CallbackPanics:      atomic.LoadUint64(&m.callbackPanics),

		BreakerOpened:         atomic.LoadUint64(&m.breakerOpened),
		BreakerHalfOpened:     atomic.LoadUint64(&m.breakerHalfOpened),
		BreakerClosed:         atomic.LoadUint64(&m.breakerClosed),
		BreakerShortCircuited: atomic.LoadUint64(&m.breakerShortCircuited),

		CacheHits:      atomic.LoadUint64(&m.cacheHits),
		CacheMisses:    atomic.LoadUint64(&m.cacheMisses),
		CacheEvictions: atomic.LoadUint64(&m.cacheEvictions),
	}
}
