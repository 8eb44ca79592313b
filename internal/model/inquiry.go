package model

import (
	"strings"
	"time"
)

// InquiryType classifies a contact inquiry.
type InquiryType string

const (
	InquiryBooking       InquiryType = "booking"
	InquiryPress         InquiryType = "press"
	InquiryCollaboration InquiryType = "collaboration"
	InquiryLicensing     InquiryType = "licensing"
	InquiryOther         InquiryType = "other"
)

// IsValid checks if the type is known.
func (t InquiryType) IsValid() bool {
	switch t {
	case InquiryBooking, InquiryPress, InquiryCollaboration, InquiryLicensing, InquiryOther:
		return true
	}
	return false
}

// InquiryStatus is the lifecycle state of an inquiry.
type InquiryStatus string

const (
	InquiryNew      InquiryStatus = "new"
	InquiryRead     InquiryStatus = "read"
	InquiryReplied  InquiryStatus = "replied"
	InquiryArchived InquiryStatus = "archived"
)

// ParseInquiryStatus accepts the canonical names plus the legacy
// "pending" and "responded" spellings, which map to new and replied.
func ParseInquiryStatus(raw string) (InquiryStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new", "pending":
		return InquiryNew, true
	case "read":
		return InquiryRead, true
	case "replied", "responded":
		return InquiryReplied, true
	case "archived":
		return InquiryArchived, true
	}
	return "", false
}

// Priority values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Sender identifies who submitted the inquiry.
type Sender struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Role    string `json:"role,omitempty"`
}

// InquiryMetadata is captured from the submitting request.
type InquiryMetadata struct {
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

// Attachment references a file sent with an inquiry.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Note is an internal remark by the EPK owner.
type Note struct {
	Content   string    `json:"content"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Response is a reply sent to the inquiry's sender.
type Response struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
	SentBy  string    `json:"sentBy"`
}

// ContactInquiry is a message submitted through an EPK's contact form.
type ContactInquiry struct {
	ID              string          `json:"id"`
	EPKID           string          `json:"epkId"`
	Type            InquiryType     `json:"type"`
	Status          InquiryStatus   `json:"status"`
	Priority        string          `json:"priority"`
	Sender          Sender          `json:"sender"`
	Subject         string          `json:"subject"`
	Message         string          `json:"message"`
	Metadata        InquiryMetadata `json:"metadata"`
	Attachments     []Attachment    `json:"attachments"`
	Notes           []Note          `json:"notes"`
	ResponseHistory []Response      `json:"responseHistory"`
	ReadAt          *time.Time      `json:"readAt,omitempty"`
	RespondedAt     *time.Time      `json:"respondedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewInquiry builds a new inquiry with lifecycle defaults.
func NewInquiry(epkID string, typ InquiryType, sender Sender, subject, message string, now time.Time) *ContactInquiry {
	if !typ.IsValid() {
		typ = InquiryOther
	}
	sender.Email = NormalizeEmail(sender.Email)
	return &ContactInquiry{
		ID:              NewID(),
		EPKID:           epkID,
		Type:            typ,
		Status:          InquiryNew,
		Priority:        PriorityMedium,
		Sender:          sender,
		Subject:         strings.TrimSpace(subject),
		Message:         strings.TrimSpace(message),
		Attachments:     []Attachment{},
		Notes:           []Note{},
		ResponseHistory: []Response{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// SetStatus moves the inquiry to status. ReadAt and RespondedAt are stamped
// only on the first transition into read and replied respectively.
func (q *ContactInquiry) SetStatus(status InquiryStatus, now time.Time) {
	q.Status = status
	switch status {
	case InquiryRead:
		if q.ReadAt == nil {
			t := now
			q.ReadAt = &t
		}
	case InquiryReplied:
		if q.RespondedAt == nil {
			t := now
			q.RespondedAt = &t
		}
	}
	q.UpdatedAt = now
}

// AddResponse appends to the response history and forces replied.
func (q *ContactInquiry) AddResponse(message, sentBy string, now time.Time) Response {
	r := Response{Message: message, SentAt: now, SentBy: sentBy}
	q.ResponseHistory = append(q.ResponseHistory, r)
	q.SetStatus(InquiryReplied, now)
	return r
}

// AddNote appends an internal note.
func (q *ContactInquiry) AddNote(content, createdBy string, now time.Time) Note {
	n := Note{Content: content, CreatedBy: createdBy, CreatedAt: now}
	q.Notes = append(q.Notes, n)
	q.UpdatedAt = now
	return n
}

// InquiryStats is the per-user inquiry summary.
type InquiryStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Read      int64 `json:"read"`
	Responded int64 `json:"responded"`
	Archived  int64 `json:"archived"`
	Booking   int64 `json:"booking"`
	Press     int64 `json:"press"`
}
