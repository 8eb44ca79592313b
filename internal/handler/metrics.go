package handler

import (
	"fmt"
	"net/http"

	"github.com/presskit/presskit/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "presskit_epk_cache_hits_total %d\n", snap.EPKCacheHits)
	writeMetric(w, "presskit_epk_cache_misses_total %d\n", snap.EPKCacheMisses)
	writeMetric(w, "presskit_public_epk_duration_seconds_count %d\n", snap.PublicEPKDurationCount)
	writeMetric(w, "presskit_public_epk_duration_seconds_sum %.6f\n", float64(snap.PublicEPKDurationTotalNs)/1e9)

	writeMetric(w, "presskit_epks_created_total %d\n", snap.EPKsCreated)
	writeMetric(w, "presskit_epks_updated_total %d\n", snap.EPKsUpdated)
	writeMetric(w, "presskit_epks_deleted_total %d\n", snap.EPKsDeleted)

	writeMetric(w, "presskit_media_uploaded_total{type=\"image\"} %d\n", snap.ImagesUploaded)
	writeMetric(w, "presskit_media_uploaded_total{type=\"audio\"} %d\n", snap.AudioUploaded)
	writeMetric(w, "presskit_media_uploaded_total{type=\"document\"} %d\n", snap.DocsUploaded)

	writeMetric(w, "presskit_inquiries_received_total %d\n", snap.InquiriesReceived)

	writeMetric(w, "presskit_payment_webhooks_total{status=\"processed\"} %d\n", snap.PaymentWebhooksProcessed)
	writeMetric(w, "presskit_payment_webhooks_total{status=\"duplicate\"} %d\n", snap.PaymentWebhooksDuplicate)
	writeMetric(w, "presskit_payment_webhooks_total{status=\"failed\"} %d\n", snap.PaymentWebhooksFailed)

	writeMetric(w, "presskit_analytics_events_published_total{status=\"success\"} %d\n", snap.AnalyticsEventsPublished)
	writeMetric(w, "presskit_analytics_events_published_total{status=\"dropped\"} %d\n", snap.AnalyticsEventsDropped)

	writeMetric(w, "presskit_analytics_events_processed_total{status=\"success\"} %d\n", snap.AnalyticsEventsProcessed)
	writeMetric(w, "presskit_analytics_events_processed_total{status=\"failed\"} %d\n", snap.AnalyticsEventsFailed)
	writeMetric(w, "presskit_analytics_events_processed_total{status=\"dead_lettered\"} %d\n", snap.AnalyticsEventsDeadLettered)

	writeMetric(w, "presskit_analytics_batches_total %d\n", snap.AnalyticsBatchCount)
	writeMetric(w, "presskit_analytics_batch_events_total %d\n", snap.AnalyticsBatchEvents)
	writeMetric(w, "presskit_analytics_queue_depth %d\n", snap.AnalyticsQueueDepth)
	writeMetric(w, "presskit_analytics_batch_duration_seconds_sum %.6f\n", float64(snap.AnalyticsBatchDurationTotalNs)/1e9)
	writeMetric(w, "presskit_analytics_ingest_lag_seconds_count %d\n", snap.AnalyticsIngestLagCount)
	writeMetric(w, "presskit_analytics_ingest_lag_seconds_sum %.6f\n", float64(snap.AnalyticsIngestLagTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
