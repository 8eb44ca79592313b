// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Public EPK page metrics
	IncEPKCacheHit()
	IncEPKCacheMiss()
	ObservePublicEPKDuration(duration time.Duration)

	// EPK management metrics
	IncEPKCreated()
	IncEPKUpdated()
	IncEPKDeleted()
	IncMediaUploaded(kind string, count int)

	// Contact and billing metrics
	IncInquiryReceived()
	IncPaymentWebhook(status string) // status: "processed", "duplicate", "failed"

	// Analytics pipeline metrics
	IncAnalyticsEventPublished(status string) // status: "success" or "dropped"
	IncAnalyticsEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveAnalyticsBatchSize(size int)
	ObserveAnalyticsBatchDuration(duration time.Duration)
	SetAnalyticsQueueDepth(depth int64)
	ObserveAnalyticsIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
