package model

import (
	"sort"
	"time"
)

// DateLayout is the day-bucket key format.
const DateLayout = "2006-01-02"

// InteractionType names a tracked visitor interaction on an EPK page.
type InteractionType string

const (
	InteractionClick       InteractionType = "click"
	InteractionScroll      InteractionType = "scroll"
	InteractionPlay        InteractionType = "play"
	InteractionPause       InteractionType = "pause"
	InteractionDownload    InteractionType = "download"
	InteractionContactForm InteractionType = "contact_form"
)

// InteractionTypes lists every tracked interaction.
var InteractionTypes = []InteractionType{
	InteractionClick, InteractionScroll, InteractionPlay,
	InteractionPause, InteractionDownload, InteractionContactForm,
}

// IsValid checks if the interaction type is known.
func (t InteractionType) IsValid() bool {
	for _, it := range InteractionTypes {
		if it == t {
			return true
		}
	}
	return false
}

// Analytics event kinds.
const (
	EventPageView    = "page_view"
	EventInteraction = "interaction"
)

// AnalyticsEvent is a single page view or interaction on a public EPK page.
type AnalyticsEvent struct {
	EventID     string          `json:"eventId"` // Idempotency key (Redis stream ID)
	Kind        string          `json:"kind"`
	EPKID       string          `json:"epkId"`
	Interaction InteractionType `json:"interaction,omitempty"`
	VisitorHash string          `json:"visitorHash,omitempty"`
	Unique      bool            `json:"unique,omitempty"`
	Referrer    string          `json:"referrer,omitempty"`
	UserAgent   string          `json:"userAgent,omitempty"`
	CountryCode string          `json:"countryCode,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// DailyViews is one day bucket.
type DailyViews struct {
	Date   string `json:"date"`
	Views  int64  `json:"views"`
	Unique int64  `json:"unique"`
}

// PageViews aggregates view counts.
type PageViews struct {
	Total  int64        `json:"total"`
	Unique int64        `json:"unique"`
	Daily  []DailyViews `json:"daily"`
}

// Engagement aggregates interaction counters.
type Engagement struct {
	AverageTimeOnPage      float64 `json:"averageTimeOnPage"`
	BounceRate             float64 `json:"bounceRate"`
	MusicPlays             int64   `json:"musicPlays"`
	DownloadCount          int64   `json:"downloadCount"`
	ContactFormSubmissions int64   `json:"contactFormSubmissions"`
}

// Demographics breaks views down by visitor attributes.
type Demographics struct {
	Countries map[string]int64 `json:"countries"`
	Devices   map[string]int64 `json:"devices"`
	Browsers  map[string]int64 `json:"browsers"`
}

// Traffic breaks views down by source.
type Traffic struct {
	Sources     map[string]int64 `json:"sources"`
	SocialMedia map[string]int64 `json:"socialMedia"`
}

// RankedItem is an entry in a top-N list.
type RankedItem struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ContentPerformance ranks the EPK's content.
type ContentPerformance struct {
	TopReferrers []RankedItem `json:"topReferrers"`
	TopTracks    []RankedItem `json:"topTracks"`
}

// PeriodSummary covers trailing windows.
type PeriodSummary struct {
	Last7Days  int64 `json:"last7Days"`
	Last30Days int64 `json:"last30Days"`
}

// Analytics is the persisted per-EPK analytics record.
type Analytics struct {
	EPKID              string             `json:"epkId"`
	PageViews          PageViews          `json:"pageViews"`
	Engagement         Engagement         `json:"engagement"`
	Demographics       Demographics       `json:"demographics"`
	Traffic            Traffic            `json:"traffic"`
	ContentPerformance ContentPerformance `json:"contentPerformance"`
	PeriodSummary      PeriodSummary      `json:"periodSummary"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// NewAnalytics returns an empty record for epkID.
func NewAnalytics(epkID string, now time.Time) *Analytics {
	return &Analytics{
		EPKID:     epkID,
		PageViews: PageViews{Daily: []DailyViews{}},
		Demographics: Demographics{
			Countries: map[string]int64{},
			Devices:   map[string]int64{},
			Browsers:  map[string]int64{},
		},
		Traffic: Traffic{
			Sources:     map[string]int64{},
			SocialMedia: map[string]int64{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateDailyViews increments the bucket for date, appending one if the day
// has no bucket yet, then increments the running totals.
func (a *Analytics) UpdateDailyViews(date time.Time, views, unique int64) {
	key := date.UTC().Format(DateLayout)
	found := false
	for i := range a.PageViews.Daily {
		if a.PageViews.Daily[i].Date == key {
			a.PageViews.Daily[i].Views += views
			a.PageViews.Daily[i].Unique += unique
			found = true
			break
		}
	}
	if !found {
		a.PageViews.Daily = append(a.PageViews.Daily, DailyViews{Date: key, Views: views, Unique: unique})
	}
	a.PageViews.Total += views
	a.PageViews.Unique += unique
}

// RecordEvent folds a single page view's breakdown dimensions into the record.
func (a *Analytics) RecordEvent(country, device, browser, source string, social bool) {
	if a.Demographics.Countries == nil {
		a.Demographics.Countries = map[string]int64{}
	}
	if a.Demographics.Devices == nil {
		a.Demographics.Devices = map[string]int64{}
	}
	if a.Demographics.Browsers == nil {
		a.Demographics.Browsers = map[string]int64{}
	}
	if a.Traffic.Sources == nil {
		a.Traffic.Sources = map[string]int64{}
	}
	if a.Traffic.SocialMedia == nil {
		a.Traffic.SocialMedia = map[string]int64{}
	}
	if country != "" {
		a.Demographics.Countries[country]++
	}
	a.Demographics.Devices[device]++
	a.Demographics.Browsers[browser]++
	a.Traffic.Sources[source]++
	if social {
		a.Traffic.SocialMedia[source]++
	}
}

// RecordInteraction folds an interaction into the engagement counters.
// Interactions without a persisted counter are ignored.
func (a *Analytics) RecordInteraction(t InteractionType) {
	switch t {
	case InteractionPlay:
		a.Engagement.MusicPlays++
	case InteractionDownload:
		a.Engagement.DownloadCount++
	case InteractionContactForm:
		a.Engagement.ContactFormSubmissions++
	}
}

// Summarize recomputes derived fields: trailing-window totals and the top referrers.
func (a *Analytics) Summarize(now time.Time) {
	today := now.UTC().Truncate(24 * time.Hour)
	var last7, last30 int64
	for _, d := range a.PageViews.Daily {
		day, err := time.Parse(DateLayout, d.Date)
		if err != nil {
			continue
		}
		age := today.Sub(day)
		if age < 0 {
			age = 0
		}
		if age < 7*24*time.Hour {
			last7 += d.Views
		}
		if age < 30*24*time.Hour {
			last30 += d.Views
		}
	}
	a.PeriodSummary = PeriodSummary{Last7Days: last7, Last30Days: last30}
	a.ContentPerformance.TopReferrers = TopN(a.Traffic.Sources, 5)
	a.UpdatedAt = now
}

// TopN ranks counts descending, ties broken by key.
func TopN(counts map[string]int64, n int) []RankedItem {
	items := make([]RankedItem, 0, len(counts))
	for k, v := range counts {
		items = append(items, RankedItem{Key: k, Count: v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Key < items[j].Key
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}

// LiveCounters are the real-time counters kept in the cache.
type LiveCounters struct {
	PageViews      int64                     `json:"pageViews"`
	UniqueVisitors int64                     `json:"uniqueVisitors"`
	Interactions   map[InteractionType]int64 `json:"interactions"`
	EngagementRate float64                   `json:"engagementRate"`
}

// ComputeEngagementRate sets EngagementRate to total interactions per page view.
func (c *LiveCounters) ComputeEngagementRate() {
	if c.PageViews <= 0 {
		c.EngagementRate = 0
		return
	}
	var total int64
	for _, v := range c.Interactions {
		total += v
	}
	c.EngagementRate = float64(total) / float64(c.PageViews)
}

// AnalyticsReport is returned to the EPK owner.
type AnalyticsReport struct {
	EPKID       string       `json:"epkId"`
	Live        LiveCounters `json:"live"`
	History     *Analytics   `json:"history"`
	GeneratedAt time.Time    `json:"generatedAt"`
}
