package dto

import (
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/service"
)

// EPKRequest represents the body for creating or updating an EPK.
// Absent blocks are left unchanged on update.
type EPKRequest struct {
	Title         *string               `json:"title,omitempty"`
	Status        *model.EPKStatus      `json:"status,omitempty"`
	Bio           *model.Bio            `json:"bio,omitempty"`
	Photos        []model.PhotoCategory `json:"photos,omitempty"`
	Music         *model.Music          `json:"music,omitempty"`
	PressKit      *model.PressKit       `json:"pressKit,omitempty"`
	Contact       *model.Contact        `json:"contact,omitempty"`
	Customization *model.Customization  `json:"customization,omitempty"`
	SEO           *model.SEO            `json:"seo,omitempty"`
}

// ToInput converts the request to service input.
func (r EPKRequest) ToInput() service.EPKInput {
	return service.EPKInput{
		Title:         r.Title,
		Status:        r.Status,
		Bio:           r.Bio,
		Photos:        r.Photos,
		Music:         r.Music,
		PressKit:      r.PressKit,
		Contact:       r.Contact,
		Customization: r.Customization,
		SEO:           r.SEO,
	}
}

// DeleteMediaRequest names the asset to remove and its collection.
// PublicID is accepted as an alias of AssetID.
type DeleteMediaRequest struct {
	AssetID  string          `json:"assetId"`
	PublicID string          `json:"publicId,omitempty"`
	Type     model.MediaKind `json:"type"`
}

// Asset returns the asset ID, falling back to PublicID.
func (r DeleteMediaRequest) Asset() string {
	if r.AssetID != "" {
		return r.AssetID
	}
	return r.PublicID
}

// InteractionRequest records a visitor interaction.
type InteractionRequest struct {
	Type model.InteractionType `json:"type"`
}
