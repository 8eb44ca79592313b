package analytics

import (
	"fmt"

	"github.com/presskit/presskit/internal/model"
)

const (
	maxMetaLength     = 500
	visitorHashLength = 16
)

// ValidatePayload validates stream payload fields.
func ValidatePayload(payload EventPayload) error {
	switch payload.Kind {
	case model.EventPageView:
		if payload.VisitorHash == "" {
			return fmt.Errorf("visitor_hash is required")
		}
	case model.EventInteraction:
		if !model.InteractionType(payload.Interaction).IsValid() {
			return fmt.Errorf("unknown interaction %q", payload.Interaction)
		}
	default:
		return fmt.Errorf("unknown event kind %q", payload.Kind)
	}
	if !model.ValidID(payload.EPKID) {
		return fmt.Errorf("epk_id is invalid")
	}
	if payload.VisitorHash != "" && (len(payload.VisitorHash) != visitorHashLength || !isHex(payload.VisitorHash)) {
		return fmt.Errorf("visitor_hash must be %d hex chars", visitorHashLength)
	}
	if payload.CountryCode != "" && len(payload.CountryCode) != 2 {
		return fmt.Errorf("country_code must be 2 chars")
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	if len(payload.Referrer) > maxMetaLength {
		return fmt.Errorf("referrer too long")
	}
	if len(payload.UserAgent) > maxMetaLength {
		return fmt.Errorf("user_agent too long")
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
