package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncEPKCacheHit()                                 {}
func (n *NoopRecorder) IncEPKCacheMiss()                                {}
func (n *NoopRecorder) ObservePublicEPKDuration(duration time.Duration) {}
func (n *NoopRecorder) IncEPKCreated()                                  {}
func (n *NoopRecorder) IncEPKUpdated()                                  {}
func (n *NoopRecorder) IncEPKDeleted()                                  {}
func (n *NoopRecorder) IncMediaUploaded(kind string, count int)         {}
func (n *NoopRecorder) IncInquiryReceived()                             {}
func (n *NoopRecorder) IncPaymentWebhook(status string)                 {}
func (n *NoopRecorder) IncAnalyticsEventPublished(status string)        {}
func (n *NoopRecorder) IncAnalyticsEventProcessed(status string)        {}
func (n *NoopRecorder) ObserveAnalyticsBatchSize(size int)              {}
func (n *NoopRecorder) ObserveAnalyticsBatchDuration(d time.Duration)   {}
func (n *NoopRecorder) SetAnalyticsQueueDepth(depth int64)              {}
func (n *NoopRecorder) ObserveAnalyticsIngestLag(lag time.Duration)     {}
