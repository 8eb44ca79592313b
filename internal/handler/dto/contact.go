package dto

import (
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/service"
)

// InquiryRequest represents a contact form submission.
type InquiryRequest struct {
	Name    string            `json:"name"`
	Email   string            `json:"email"`
	Phone   string            `json:"phone,omitempty"`
	Company string            `json:"company,omitempty"`
	Subject string            `json:"subject"`
	Message string            `json:"message"`
	Type    model.InquiryType `json:"type,omitempty"`
}

// ToInput converts the request to service input with request metadata attached.
func (r InquiryRequest) ToInput(meta model.InquiryMetadata) service.SubmitInput {
	return service.SubmitInput{
		Name:     r.Name,
		Email:    r.Email,
		Phone:    r.Phone,
		Company:  r.Company,
		Subject:  r.Subject,
		Message:  r.Message,
		Type:     r.Type,
		Metadata: meta,
	}
}

// InquiryStatusRequest changes an inquiry's status with an optional note.
type InquiryStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// RespondRequest carries a reply to the inquiry's sender.
type RespondRequest struct {
	Message string `json:"message"`
}

// NoteRequest carries an internal note.
type NoteRequest struct {
	Content string `json:"content"`
}
