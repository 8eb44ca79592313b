package model

import (
	"regexp"
	"strings"
	"time"
)

// EPKStatus is the publication state of an EPK.
type EPKStatus string

const (
	EPKStatusDraft     EPKStatus = "draft"
	EPKStatusPublished EPKStatus = "published"
)

// IsValid checks if the status is known.
func (s EPKStatus) IsValid() bool {
	return s == EPKStatusDraft || s == EPKStatusPublished
}

// MediaKind selects which EPK collection an upload lands in. Documents are
// filed as press kit riders.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

// IsValid checks if the media kind is known.
func (k MediaKind) IsValid() bool {
	return k == MediaImage || k == MediaAudio || k == MediaDocument
}

// DefaultPhotoCategory receives uploaded images when no category is given.
const DefaultPhotoCategory = "uploads"

// Bio is the narrative section of an EPK.
type Bio struct {
	ShortBio   string   `json:"shortBio,omitempty"`
	FullBio    string   `json:"fullBio,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// Image is a single photo stored at the asset host.
type Image struct {
	URL     string `json:"url"`
	AssetID string `json:"assetId,omitempty"`
	Caption string `json:"caption,omitempty"`
	AltText string `json:"altText,omitempty"`
	Order   int    `json:"order"`
}

// PhotoCategory groups images (press shots, live, artwork).
type PhotoCategory struct {
	Category string  `json:"category"`
	Images   []Image `json:"images"`
}

// Track is a song either uploaded or linked from a streaming platform.
type Track struct {
	Title       string     `json:"title"`
	Type        string     `json:"type"` // upload or streaming
	URL         string     `json:"url"`
	AssetID     string     `json:"assetId,omitempty"`
	Platform    string     `json:"platform,omitempty"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	Order       int        `json:"order"`
}

// Playlist links an external playlist.
type Playlist struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Platform string `json:"platform,omitempty"`
}

// Music holds tracks and playlists.
type Music struct {
	Tracks    []Track    `json:"tracks"`
	Playlists []Playlist `json:"playlists,omitempty"`
}

// Rider is a technical or hospitality rider document.
type Rider struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	FileURL string `json:"fileUrl"`
	AssetID string `json:"assetId,omitempty"`
	Version string `json:"version,omitempty"`
}

// PressRelease is a dated announcement.
type PressRelease struct {
	Title   string     `json:"title"`
	Date    *time.Time `json:"date,omitempty"`
	Content string     `json:"content,omitempty"`
	FileURL string     `json:"fileUrl,omitempty"`
}

// PressKit holds downloadable press material.
type PressKit struct {
	Riders        []Rider        `json:"riders,omitempty"`
	PressReleases []PressRelease `json:"pressReleases,omitempty"`
}

// SocialLinks holds profile URLs per platform.
type SocialLinks struct {
	Instagram  string `json:"instagram,omitempty"`
	Facebook   string `json:"facebook,omitempty"`
	Twitter    string `json:"twitter,omitempty"`
	YouTube    string `json:"youtube,omitempty"`
	Spotify    string `json:"spotify,omitempty"`
	SoundCloud string `json:"soundcloud,omitempty"`
}

// Contact is where inquiries for the EPK are delivered.
type Contact struct {
	Email            string      `json:"email"`
	Phone            string      `json:"phone,omitempty"`
	Website          string      `json:"website,omitempty"`
	SocialLinks      SocialLinks `json:"socialLinks"`
	BookingInquiries bool        `json:"bookingInquiries"`
}

// Customization controls the rendered page.
type Customization struct {
	Theme        string `json:"theme"`
	AccentColor  string `json:"accentColor,omitempty"`
	CustomCSS    string `json:"customCss,omitempty"`
	CustomDomain string `json:"customDomain,omitempty"`
}

// PageStats is the lightweight counter snapshot embedded in the EPK.
type PageStats struct {
	Views             int64      `json:"views"`
	UniqueVisitors    int64      `json:"uniqueVisitors"`
	AverageTimeOnPage float64    `json:"averageTimeOnPage"`
	TopReferrers      []string   `json:"topReferrers,omitempty"`
	LastUpdated       *time.Time `json:"lastUpdated,omitempty"`
}

// SEO holds page metadata.
type SEO struct {
	MetaTitle       string   `json:"metaTitle,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	OGImage         string   `json:"ogImage,omitempty"`
}

// EPK is an electronic press kit owned by one user.
type EPK struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Status        EPKStatus       `json:"status"`
	Bio           Bio             `json:"bio"`
	Photos        []PhotoCategory `json:"photos"`
	Music         Music           `json:"music"`
	PressKit      PressKit        `json:"pressKit"`
	Contact       Contact         `json:"contact"`
	Customization Customization   `json:"customization"`
	Analytics     PageStats       `json:"analytics"`
	SEO           SEO             `json:"seo"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// MediaAsset describes a freshly uploaded file.
type MediaAsset struct {
	URL      string    `json:"url"`
	AssetID  string    `json:"assetId"`
	Type     MediaKind `json:"type"`
	Filename string    `json:"filename,omitempty"`
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[\s_-]+`)
)

// Slugify derives a URL slug from a title: lowercase, punctuation dropped, runs of
// whitespace/underscores/hyphens collapsed to one hyphen, no leading or trailing hyphen.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NewEPK builds a draft EPK for userID with derived fields applied.
func NewEPK(userID, title string, now time.Time) *EPK {
	e := &EPK{
		ID:            NewID(),
		UserID:        userID,
		Status:        EPKStatusDraft,
		Photos:        []PhotoCategory{},
		Music:         Music{Tracks: []Track{}},
		Contact:       Contact{BookingInquiries: true},
		Customization: Customization{Theme: "light"},
		CreatedAt:     now,
	}
	e.SetTitle(title, now)
	return e
}

// SetTitle changes the title and regenerates the slug when the title differs.
func (e *EPK) SetTitle(title string, now time.Time) {
	title = strings.TrimSpace(title)
	if title != e.Title || e.Slug == "" {
		e.Title = title
		e.Slug = Slugify(title)
	}
	e.UpdatedAt = now
}

// OwnedBy reports whether userID owns the EPK.
func (e *EPK) OwnedBy(userID string) bool {
	return e.UserID == userID
}

// AddMedia appends uploaded assets to the collection selected by kind.
// Images go to the named photo category, created on demand.
func (e *EPK) AddMedia(kind MediaKind, category string, assets []MediaAsset, now time.Time) {
	switch kind {
	case MediaImage:
		if category == "" {
			category = DefaultPhotoCategory
		}
		idx := -1
		for i := range e.Photos {
			if e.Photos[i].Category == category {
				idx = i
				break
			}
		}
		if idx < 0 {
			e.Photos = append(e.Photos, PhotoCategory{Category: category})
			idx = len(e.Photos) - 1
		}
		for _, a := range assets {
			order := len(e.Photos[idx].Images)
			e.Photos[idx].Images = append(e.Photos[idx].Images, Image{URL: a.URL, AssetID: a.AssetID, Order: order})
		}
	case MediaAudio:
		for _, a := range assets {
			e.Music.Tracks = append(e.Music.Tracks, Track{
				Title:   a.Filename,
				Type:    "upload",
				URL:     a.URL,
				AssetID: a.AssetID,
				Order:   len(e.Music.Tracks),
			})
		}
	case MediaDocument:
		for _, a := range assets {
			e.PressKit.Riders = append(e.PressKit.Riders, Rider{
				Name:    a.Filename,
				Type:    "document",
				FileURL: a.URL,
				AssetID: a.AssetID,
			})
		}
	}
	e.UpdatedAt = now
}

// RemoveMedia filters assetID out of the collection selected by kind.
// It reports whether anything was removed, so repeated calls are harmless.
func (e *EPK) RemoveMedia(kind MediaKind, assetID string, now time.Time) bool {
	removed := false
	switch kind {
	case MediaImage:
		for i := range e.Photos {
			kept := e.Photos[i].Images[:0]
			for _, img := range e.Photos[i].Images {
				if img.AssetID == assetID {
					removed = true
					continue
				}
				kept = append(kept, img)
			}
			e.Photos[i].Images = kept
		}
	case MediaAudio:
		kept := e.Music.Tracks[:0]
		for _, t := range e.Music.Tracks {
			if t.AssetID == assetID {
				removed = true
				continue
			}
			kept = append(kept, t)
		}
		e.Music.Tracks = kept
	case MediaDocument:
		kept := e.PressKit.Riders[:0]
		for _, r := range e.PressKit.Riders {
			if r.AssetID == assetID {
				removed = true
				continue
			}
			kept = append(kept, r)
		}
		e.PressKit.Riders = kept
	}
	if removed {
		e.UpdatedAt = now
	}
	return removed
}

// AssetIDs lists every asset-host identifier referenced by the EPK.
func (e *EPK) AssetIDs() []string {
	var ids []string
	for _, c := range e.Photos {
		for _, img := range c.Images {
			if img.AssetID != "" {
				ids = append(ids, img.AssetID)
			}
		}
	}
	for _, t := range e.Music.Tracks {
		if t.AssetID != "" {
			ids = append(ids, t.AssetID)
		}
	}
	for _, r := range e.PressKit.Riders {
		if r.AssetID != "" {
			ids = append(ids, r.AssetID)
		}
	}
	return ids
}
