package analytics

import (
	"testing"
	"time"

	"github.com/presskit/presskit/internal/model"
)

func TestValidatePayload(t *testing.T) {
	epkID := model.NewID()
	now := time.Now().UnixMilli()

	valid := []EventPayload{
		{Kind: model.EventPageView, EPKID: epkID, VisitorHash: "0123456789abcdef", CountryCode: "US", OccurredAt: now},
		{Kind: model.EventInteraction, EPKID: epkID, Interaction: "play", OccurredAt: now},
	}
	for _, p := range valid {
		if err := ValidatePayload(p); err != nil {
			t.Fatalf("expected valid payload %+v, got %v", p, err)
		}
	}

	cases := []struct {
		name    string
		payload EventPayload
	}{
		{"unknown_kind", EventPayload{Kind: "hover", EPKID: epkID, OccurredAt: now}},
		{"bad_epk_id", EventPayload{Kind: model.EventPageView, EPKID: "nope", VisitorHash: "0123456789abcdef", OccurredAt: now}},
		{"missing_visitor_hash", EventPayload{Kind: model.EventPageView, EPKID: epkID, OccurredAt: now}},
		{"invalid_visitor_hash", EventPayload{Kind: model.EventPageView, EPKID: epkID, VisitorHash: "not-hex", OccurredAt: now}},
		{"unknown_interaction", EventPayload{Kind: model.EventInteraction, EPKID: epkID, Interaction: "hover", OccurredAt: now}},
		{"invalid_country_code", EventPayload{Kind: model.EventPageView, EPKID: epkID, VisitorHash: "0123456789abcdef", CountryCode: "USA", OccurredAt: now}},
		{"missing_occurred_at", EventPayload{Kind: model.EventPageView, EPKID: epkID, VisitorHash: "0123456789abcdef"}},
	}

	for _, tc := range cases {
		if err := ValidatePayload(tc.payload); err == nil {
			t.Fatalf("expected error for %s", tc.name)
		}
	}
}
