package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/mail"
	"github.com/presskit/presskit/internal/metrics"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/repository"
)

// Inquiry errors surfaced to clients.
var (
	ErrInquiryNotFound         = apperror.NotFound("Inquiry not found")
	ErrInquiryUpdateForbidden  = apperror.Forbidden("Not authorized to update this inquiry")
	ErrInquiryRespondForbidden = apperror.Forbidden("Not authorized to respond to this inquiry")
	ErrInvalidInquiryStatus    = apperror.BadRequest("Invalid status value")
	ErrResponseRequired        = apperror.BadRequest("Please add a response message")
	ErrNoteRequired            = apperror.BadRequest("Please add note content")
	ErrContactDisabled         = apperror.BadRequest("This EPK is not accepting inquiries")
)

// Field limits for contact submissions.
const (
	minMessageLength = 10
	maxMessageLength = 5000
	maxSubjectLength = 200
	maxNameLength    = 100
)

// ContactDeps groups the collaborators of ContactService.
type ContactDeps struct {
	Inquiries InquiryStore
	EPKs      EPKStore
	Users     UserStore
	Mailer    Notifier
	Tracker   InteractionTracker
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// InteractionTracker records public page interactions. *EPKService implements it.
type InteractionTracker interface {
	TrackInteraction(ctx context.Context, epkID string, interaction model.InteractionType) error
}

// ContactService handles the inquiry lifecycle.
type ContactService struct {
	inquiries InquiryStore
	epks      EPKStore
	users     UserStore
	mailer    Notifier
	tracker   InteractionTracker
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewContactService creates a new ContactService.
func NewContactService(d ContactDeps) *ContactService {
	if d.Metrics == nil {
		d.Metrics = metrics.NewNoop()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &ContactService{
		inquiries: d.Inquiries,
		epks:      d.EPKs,
		users:     d.Users,
		mailer:    d.Mailer,
		tracker:   d.Tracker,
		metrics:   d.Metrics,
		logger:    d.Logger.With("component", "service.contact"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput is an unauthenticated contact form submission.
type SubmitInput struct {
	Name     string
	Email    string
	Phone    string
	Company  string
	Subject  string
	Message  string
	Type     model.InquiryType
	Metadata model.InquiryMetadata
}

func (in *SubmitInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = model.NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Company = strings.TrimSpace(in.Company)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if in.Type == "" {
		in.Type = model.InquiryOther
	}
}

func (in SubmitInput) validate() error {
	var msgs []string
	switch {
	case in.Name == "":
		msgs = append(msgs, "Please add your name")
	case utf8.RuneCountInString(in.Name) > maxNameLength:
		msgs = append(msgs, fmt.Sprintf("Name cannot be more than %d characters", maxNameLength))
	}
	if !model.IsValidEmail(in.Email) {
		msgs = append(msgs, "Please provide a valid email")
	}
	switch {
	case in.Subject == "":
		msgs = append(msgs, "Please add a subject")
	case utf8.RuneCountInString(in.Subject) > maxSubjectLength:
		msgs = append(msgs, fmt.Sprintf("Subject cannot be more than %d characters", maxSubjectLength))
	}
	switch {
	case utf8.RuneCountInString(in.Message) < minMessageLength:
		msgs = append(msgs, fmt.Sprintf("Message must be at least %d characters", minMessageLength))
	case utf8.RuneCountInString(in.Message) > maxMessageLength:
		msgs = append(msgs, fmt.Sprintf("Message cannot be more than %d characters", maxMessageLength))
	}
	if !in.Type.IsValid() {
		msgs = append(msgs, "Invalid inquiry type")
	}
	return apperror.Validation(msgs...)
}

// Submit stores a new inquiry and notifies the EPK's contact address.
func (s *ContactService) Submit(ctx context.Context, epkID string, in SubmitInput) (*model.ContactInquiry, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	epk, err := s.epks.GetEPK(ctx, epkID)
	if err != nil {
		if errors.Is(err, repository.ErrEPKNotFound) {
			return nil, ErrEPKNotFound
		}
		return nil, err
	}
	if !epk.Contact.BookingInquiries && in.Type == model.InquiryBooking {
		return nil, ErrContactDisabled
	}

	sender := model.Sender{Name: in.Name, Email: in.Email, Phone: in.Phone, Company: in.Company}
	inquiry := model.NewInquiry(epk.ID, in.Type, sender, in.Subject, in.Message, s.now())
	inquiry.Metadata = in.Metadata

	if err := s.inquiries.CreateInquiry(ctx, inquiry); err != nil {
		return nil, err
	}
	s.metrics.IncInquiryReceived()

	if s.tracker != nil {
		if err := s.tracker.TrackInteraction(ctx, epk.ID, model.InteractionContactForm); err != nil {
			s.logger.Warn("contact interaction not tracked", "epk_id", epk.ID, "error", err)
		}
	}

	to, err := s.notificationAddress(ctx, epk)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendContactNotification(ctx, to, mail.ContactNotification{
		EPKTitle: epk.Title,
		Type:     string(inquiry.Type),
		Name:     sender.Name,
		Email:    sender.Email,
		Subject:  inquiry.Subject,
		Message:  inquiry.Message,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("inquiry_submitted", "inquiry_id", inquiry.ID, "epk_id", epk.ID)
	return inquiry, nil
}

// notificationAddress is the EPK's contact email, falling back to the owner's.
func (s *ContactService) notificationAddress(ctx context.Context, epk *model.EPK) (string, error) {
	if epk.Contact.Email != "" {
		return epk.Contact.Email, nil
	}
	owner, err := s.users.GetUserByID(ctx, epk.UserID)
	if err != nil {
		return "", fmt.Errorf("load epk owner: %w", err)
	}
	return owner.Email, nil
}

// ListInput filters a user's received inquiries.
type ListInput struct {
	Status string
	Type   string
	Page   int
	Limit  int
}

// List returns inquiries across every EPK the user owns, newest first.
func (s *ContactService) List(ctx context.Context, userID string, in ListInput) (*repository.Page[model.ContactInquiry], error) {
	filter := repository.InquiryFilter{Page: in.Page, Limit: in.Limit}
	if in.Status != "" {
		status, ok := model.ParseInquiryStatus(in.Status)
		if !ok {
			return nil, ErrInvalidInquiryStatus
		}
		filter.Status = status
	}
	if in.Type != "" {
		t := model.InquiryType(strings.ToLower(in.Type))
		if !t.IsValid() {
			return nil, apperror.BadRequest("Invalid inquiry type")
		}
		filter.Type = t
	}

	ids, err := s.epks.EPKIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	filter.EPKIDs = ids
	return s.inquiries.ListInquiries(ctx, filter)
}

// Stats summarizes the user's inquiries by status and type.
func (s *ContactService) Stats(ctx context.Context, userID string) (*model.InquiryStats, error) {
	ids, err := s.epks.EPKIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.inquiries.InquiryStats(ctx, ids)
}

// UpdateStatus moves an owned inquiry to status, optionally adding a note.
func (s *ContactService) UpdateStatus(ctx context.Context, userID, id, rawStatus, note string) (*model.ContactInquiry, error) {
	status, ok := model.ParseInquiryStatus(rawStatus)
	if !ok {
		return nil, ErrInvalidInquiryStatus
	}
	inquiry, err := s.owned(ctx, userID, id, ErrInquiryUpdateForbidden)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inquiry.SetStatus(status, now)
	if note = strings.TrimSpace(note); note != "" {
		inquiry.AddNote(note, userID, now)
	}
	if err := s.inquiries.UpdateInquiry(ctx, inquiry); err != nil {
		return nil, err
	}
	return inquiry, nil
}

// Respond appends a response, marks the inquiry replied and emails the sender.
func (s *ContactService) Respond(ctx context.Context, userID, id, message string) (*model.ContactInquiry, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrResponseRequired
	}
	inquiry, err := s.owned(ctx, userID, id, ErrInquiryRespondForbidden)
	if err != nil {
		return nil, err
	}

	inquiry.AddResponse(message, userID, s.now())
	if err := s.inquiries.UpdateInquiry(ctx, inquiry); err != nil {
		return nil, err
	}

	if err := s.mailer.SendInquiryResponse(ctx, inquiry.Sender.Email, inquiry.Sender.Name, inquiry.Subject, message); err != nil {
		return nil, err
	}
	return inquiry, nil
}

// AddNote appends an internal note to an owned inquiry.
func (s *ContactService) AddNote(ctx context.Context, userID, id, content string) (*model.ContactInquiry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrNoteRequired
	}
	inquiry, err := s.owned(ctx, userID, id, ErrInquiryUpdateForbidden)
	if err != nil {
		return nil, err
	}
	inquiry.AddNote(content, userID, s.now())
	if err := s.inquiries.UpdateInquiry(ctx, inquiry); err != nil {
		return nil, err
	}
	return inquiry, nil
}

// owned loads an inquiry and checks the requester owns its EPK.
func (s *ContactService) owned(ctx context.Context, userID, id string, forbidden error) (*model.ContactInquiry, error) {
	inquiry, err := s.inquiries.GetInquiry(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrInquiryNotFound) {
			return nil, ErrInquiryNotFound
		}
		return nil, err
	}
	epk, err := s.epks.GetEPK(ctx, inquiry.EPKID)
	if err != nil {
		if errors.Is(err, repository.ErrEPKNotFound) {
			return nil, forbidden
		}
		return nil, err
	}
	if !epk.OwnedBy(userID) {
		return nil, forbidden
	}
	return inquiry, nil
}
