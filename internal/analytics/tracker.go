package analytics

import (
	"strings"

	"github.com/mssola/useragent"

	"github.com/presskit/presskit/internal/model"
)

// Device classes.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	unknown       = "unknown"
)

// Traffic sources that are not a referring domain.
const (
	SourceDirect = "direct"
	SourceSearch = "search"
)

var socialDomains = map[string]string{
	"facebook.com":    "facebook",
	"fb.com":          "facebook",
	"l.facebook.com":  "facebook",
	"instagram.com":   "instagram",
	"l.instagram.com": "instagram",
	"twitter.com":     "twitter",
	"t.co":            "twitter",
	"x.com":           "twitter",
	"tiktok.com":      "tiktok",
	"youtube.com":     "youtube",
	"youtu.be":        "youtube",
	"linkedin.com":    "linkedin",
	"lnkd.in":         "linkedin",
	"reddit.com":      "reddit",
	"soundcloud.com":  "soundcloud",
	"threads.net":     "threads",
}

var searchDomains = []string{"google.", "bing.com", "duckduckgo.com", "yahoo.", "baidu.com", "yandex."}

// ClassifyUserAgent returns the device class and browser family of a user agent.
func ClassifyUserAgent(raw string) (device, browser string) {
	if raw == "" {
		return unknown, unknown
	}
	ua := useragent.New(raw)

	switch {
	case ua.Bot():
		device = DeviceBot
	case strings.Contains(raw, "iPad") || (strings.Contains(raw, "Android") && !strings.Contains(raw, "Mobile")):
		device = DeviceTablet
	case ua.Mobile():
		device = DeviceMobile
	default:
		device = DeviceDesktop
	}

	name, _ := ua.Browser()
	browser = strings.ToLower(strings.TrimSpace(name))
	if browser == "" {
		browser = unknown
	}
	return device, browser
}

// ClassifyReferrer maps a referrer to a traffic source and reports whether it
// is a social network. Social sources are named by network, search engines
// collapse to "search" and everything else keeps its domain.
func ClassifyReferrer(ref string) (source string, social bool) {
	domain := ExtractReferrerDomain(ref)
	switch domain {
	case "(direct)":
		return SourceDirect, false
	case "(unknown)":
		return unknown, false
	}

	if network, ok := socialDomains[domain]; ok {
		return network, true
	}
	if i := strings.Index(domain, "."); i >= 0 {
		if network, ok := socialDomains[domain[i+1:]]; ok {
			return network, true
		}
	}
	for _, s := range searchDomains {
		if strings.Contains(domain, s) {
			return SourceSearch, false
		}
	}
	return domain, false
}

// Fold applies one stream event to a persisted analytics record.
func Fold(a *model.Analytics, event *model.AnalyticsEvent) {
	switch event.Kind {
	case model.EventPageView:
		var unique int64
		if event.Unique {
			unique = 1
		}
		a.UpdateDailyViews(event.OccurredAt, 1, unique)

		device, browser := ClassifyUserAgent(event.UserAgent)
		source, social := ClassifyReferrer(event.Referrer)
		a.RecordEvent(event.CountryCode, device, browser, source, social)
	case model.EventInteraction:
		a.RecordInteraction(event.Interaction)
	}
}
