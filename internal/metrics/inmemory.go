package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	EPKCacheHits             uint64
	EPKCacheMisses           uint64
	PublicEPKDurationCount   uint64
	PublicEPKDurationTotalNs int64

	EPKsCreated    uint64
	EPKsUpdated    uint64
	EPKsDeleted    uint64
	ImagesUploaded uint64
	AudioUploaded  uint64
	DocsUploaded   uint64

	InquiriesReceived        uint64
	PaymentWebhooksProcessed uint64
	PaymentWebhooksDuplicate uint64
	PaymentWebhooksFailed    uint64

	AnalyticsEventsPublished      uint64
	AnalyticsEventsDropped        uint64
	AnalyticsEventsProcessed      uint64
	AnalyticsEventsFailed         uint64
	AnalyticsEventsDeadLettered   uint64
	AnalyticsBatchCount           uint64
	AnalyticsBatchEvents          uint64
	AnalyticsBatchDurationTotalNs int64
	AnalyticsQueueDepth           int64
	AnalyticsIngestLagCount       uint64
	AnalyticsIngestLagTotalNs     int64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint and tests.
type InMemoryRecorder struct {
	s Snapshot
}

var _ Recorder = (*InMemoryRecorder)(nil)

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		EPKCacheHits:             atomic.LoadUint64(&m.s.EPKCacheHits),
		EPKCacheMisses:           atomic.LoadUint64(&m.s.EPKCacheMisses),
		PublicEPKDurationCount:   atomic.LoadUint64(&m.s.PublicEPKDurationCount),
		PublicEPKDurationTotalNs: atomic.LoadInt64(&m.s.PublicEPKDurationTotalNs),

		EPKsCreated:    atomic.LoadUint64(&m.s.EPKsCreated),
		EPKsUpdated:    atomic.LoadUint64(&m.s.EPKsUpdated),
		EPKsDeleted:    atomic.LoadUint64(&m.s.EPKsDeleted),
		ImagesUploaded: atomic.LoadUint64(&m.s.ImagesUploaded),
		AudioUploaded:  atomic.LoadUint64(&m.s.AudioUploaded),
		DocsUploaded:   atomic.LoadUint64(&m.s.DocsUploaded),

		InquiriesReceived:        atomic.LoadUint64(&m.s.InquiriesReceived),
		PaymentWebhooksProcessed: atomic.LoadUint64(&m.s.PaymentWebhooksProcessed),
		PaymentWebhooksDuplicate: atomic.LoadUint64(&m.s.PaymentWebhooksDuplicate),
		PaymentWebhooksFailed:    atomic.LoadUint64(&m.s.PaymentWebhooksFailed),

		AnalyticsEventsPublished:      atomic.LoadUint64(&m.s.AnalyticsEventsPublished),
		AnalyticsEventsDropped:        atomic.LoadUint64(&m.s.AnalyticsEventsDropped),
		AnalyticsEventsProcessed:      atomic.LoadUint64(&m.s.AnalyticsEventsProcessed),
		AnalyticsEventsFailed:         atomic.LoadUint64(&m.s.AnalyticsEventsFailed),
		AnalyticsEventsDeadLettered:   atomic.LoadUint64(&m.s.AnalyticsEventsDeadLettered),
		AnalyticsBatchCount:           atomic.LoadUint64(&m.s.AnalyticsBatchCount),
		AnalyticsBatchEvents:          atomic.LoadUint64(&m.s.AnalyticsBatchEvents),
		AnalyticsBatchDurationTotalNs: atomic.LoadInt64(&m.s.AnalyticsBatchDurationTotalNs),
		AnalyticsQueueDepth:           atomic.LoadInt64(&m.s.AnalyticsQueueDepth),
		AnalyticsIngestLagCount:       atomic.LoadUint64(&m.s.AnalyticsIngestLagCount),
		AnalyticsIngestLagTotalNs:     atomic.LoadInt64(&m.s.AnalyticsIngestLagTotalNs),
	}
}

// IncEPKCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncEPKCacheHit() {
	atomic.AddUint64(&m.s.EPKCacheHits, 1)
}

// IncEPKCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncEPKCacheMiss() {
	atomic.AddUint64(&m.s.EPKCacheMisses, 1)
}

// ObservePublicEPKDuration records public page fetch duration.
func (m *InMemoryRecorder) ObservePublicEPKDuration(duration time.Duration) {
	atomic.AddUint64(&m.s.PublicEPKDurationCount, 1)
	atomic.AddInt64(&m.s.PublicEPKDurationTotalNs, duration.Nanoseconds())
}

// IncEPKCreated increments EPK created counter.
func (m *InMemoryRecorder) IncEPKCreated() {
	atomic.AddUint64(&m.s.EPKsCreated, 1)
}

// IncEPKUpdated increments EPK updated counter.
func (m *InMemoryRecorder) IncEPKUpdated() {
	atomic.AddUint64(&m.s.EPKsUpdated, 1)
}

// IncEPKDeleted increments EPK deleted counter.
func (m *InMemoryRecorder) IncEPKDeleted() {
	atomic.AddUint64(&m.s.EPKsDeleted, 1)
}

// IncMediaUploaded counts uploaded files by kind.
func (m *InMemoryRecorder) IncMediaUploaded(kind string, count int) {
	switch kind {
	case "image":
		atomic.AddUint64(&m.s.ImagesUploaded, uint64(count))
	case "audio":
		atomic.AddUint64(&m.s.AudioUploaded, uint64(count))
	case "document":
		atomic.AddUint64(&m.s.DocsUploaded, uint64(count))
	}
}

// IncInquiryReceived counts submitted contact inquiries.
func (m *InMemoryRecorder) IncInquiryReceived() {
	atomic.AddUint64(&m.s.InquiriesReceived, 1)
}

// IncPaymentWebhook counts webhook deliveries by outcome.
func (m *InMemoryRecorder) IncPaymentWebhook(status string) {
	switch status {
	case "processed":
		atomic.AddUint64(&m.s.PaymentWebhooksProcessed, 1)
	case "duplicate":
		atomic.AddUint64(&m.s.PaymentWebhooksDuplicate, 1)
	case "failed":
		atomic.AddUint64(&m.s.PaymentWebhooksFailed, 1)
	}
}

// IncAnalyticsEventPublished counts publish outcomes.
func (m *InMemoryRecorder) IncAnalyticsEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.s.AnalyticsEventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.s.AnalyticsEventsDropped, 1)
}

// IncAnalyticsEventProcessed counts worker outcomes.
func (m *InMemoryRecorder) IncAnalyticsEventProcessed(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.s.AnalyticsEventsProcessed, 1)
	case "failed":
		atomic.AddUint64(&m.s.AnalyticsEventsFailed, 1)
	case "dead_lettered":
		atomic.AddUint64(&m.s.AnalyticsEventsDeadLettered, 1)
	}
}

// ObserveAnalyticsBatchSize records a processed batch.
func (m *InMemoryRecorder) ObserveAnalyticsBatchSize(size int) {
	atomic.AddUint64(&m.s.AnalyticsBatchCount, 1)
	atomic.AddUint64(&m.s.AnalyticsBatchEvents, uint64(size))
}

// ObserveAnalyticsBatchDuration records batch processing time.
func (m *InMemoryRecorder) ObserveAnalyticsBatchDuration(duration time.Duration) {
	atomic.AddInt64(&m.s.AnalyticsBatchDurationTotalNs, duration.Nanoseconds())
}

// SetAnalyticsQueueDepth records pending plus unread stream entries.
func (m *InMemoryRecorder) SetAnalyticsQueueDepth(depth int64) {
	atomic.StoreInt64(&m.s.AnalyticsQueueDepth, depth)
}

// ObserveAnalyticsIngestLag records time from event to persistence.
func (m *InMemoryRecorder) ObserveAnalyticsIngestLag(lag time.Duration) {
	atomic.AddUint64(&m.s.AnalyticsIngestLagCount, 1)
	atomic.AddInt64(&m.s.AnalyticsIngestLagTotalNs, lag.Nanoseconds())
}
