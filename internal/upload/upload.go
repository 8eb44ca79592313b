// Package upload parses and validates multipart media uploads.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/presskit/presskit/internal/apperror"
)

// AllowedTypes is the MIME allow-list, keyed by category.
var AllowedTypes = map[string][]string{
	"image":    {"image/jpeg", "image/png", "image/webp", "image/heic"},
	"audio":    {"audio/mpeg", "audio/wav", "audio/flac"},
	"document": {"application/pdf"},
}

// multipartOverhead allows for boundaries and non-file fields on top of the file payload.
const multipartOverhead = 1 << 20

// sniffLen is how much content http.DetectContentType considers.
const sniffLen = 512

// sniffAliases maps detected types onto their allow-list spelling.
var sniffAliases = map[string]string{"audio/wave": "audio/wav", "audio/x-wav": "audio/wav"}

// Limits bounds one upload request.
type Limits struct {
	MaxFileSize int64
	MaxFiles    int
}

// File is one validated uploaded file.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	header      *multipart.FileHeader
}

// NewFile builds a File from a multipart header.
func NewFile(h *multipart.FileHeader) File {
	return File{
		Filename:    h.Filename,
		ContentType: mediaType(h.Header.Get("Content-Type")),
		Size:        h.Size,
		header:      h,
	}
}

// sniff replaces the declared type with the one detected from the first
// bytes of content. Content the detector cannot classify keeps its declared
// type. Files without a declared type are left for Validate to reject.
func (f *File) sniff() error {
	if f.ContentType == "" {
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("upload: read %q: %w", f.Filename, err)
	}

	detected := mediaType(http.DetectContentType(head[:n]))
	if alias, ok := sniffAliases[detected]; ok {
		detected = alias
	}
	if detected != "application/octet-stream" {
		f.ContentType = detected
	}
	return nil
}

// Open opens the file's content.
func (f File) Open() (io.ReadCloser, error) {
	if f.header == nil {
		return nil, fmt.Errorf("upload: file %q has no content", f.Filename)
	}
	return f.header.Open()
}

// Upload errors.
var (
	ErrNoFiles         = apperror.BadRequest("Please upload a file")
	ErrInvalidMetadata = apperror.BadRequest("Invalid file metadata")
	ErrUnsupportedType = apperror.BadRequest("File type not supported")
	ErrRequestTooLarge = apperror.New(http.StatusRequestEntityTooLarge, "Request entity too large")
)

// FileTooLarge reports a file over the per-file ceiling.
func FileTooLarge(limit int64) *apperror.Error {
	return apperror.BadRequest(fmt.Sprintf("File too large. Maximum size is %dMB", limit>>20))
}

// TooManyFiles reports more files than allowed.
func TooManyFiles(limit int) *apperror.Error {
	return apperror.BadRequest(fmt.Sprintf("Too many files. Maximum is %d files", limit))
}

// Parse reads the multipart body of r and returns the files sent under any
// of fields. The whole body is capped at MaxFiles*MaxFileSize plus overhead.
func Parse(w http.ResponseWriter, r *http.Request, limits Limits, fields ...string) ([]File, error) {
	maxBody := int64(limits.MaxFiles)*limits.MaxFileSize + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrRequestTooLarge
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, ErrNoFiles
		}
		return nil, apperror.Wrap(http.StatusBadRequest, "Invalid upload", err)
	}

	var files []File
	for _, field := range fields {
		for _, h := range r.MultipartForm.File[field] {
			f := NewFile(h)
			if err := f.sniff(); err != nil {
				return nil, apperror.Wrap(http.StatusBadRequest, "Invalid upload", err)
			}
			files = append(files, f)
		}
	}
	return files, Validate(files, limits)
}

// Validate checks count, metadata, MIME type and size. Every check runs before
// any file is sent anywhere.
func Validate(files []File, limits Limits) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
		return TooManyFiles(limits.MaxFiles)
	}
	for _, f := range files {
		if strings.TrimSpace(f.Filename) == "" || f.ContentType == "" {
			return ErrInvalidMetadata
		}
		if !IsAllowedType(f.ContentType) {
			return ErrUnsupportedType
		}
		if limits.MaxFileSize > 0 && f.Size > limits.MaxFileSize {
			return FileTooLarge(limits.MaxFileSize)
		}
	}
	return nil
}

// IsAllowedType reports whether contentType is on the allow-list.
func IsAllowedType(contentType string) bool {
	contentType = mediaType(contentType)
	for _, types := range AllowedTypes {
		for _, t := range types {
			if t == contentType {
				return true
			}
		}
	}
	return false
}

// Category returns the allow-list category of contentType, or "".
func Category(contentType string) string {
	contentType = mediaType(contentType)
	for cat, types := range AllowedTypes {
		for _, t := range types {
			if t == contentType {
				return cat
			}
		}
	}
	return ""
}

// mediaType strips parameters and normalizes case.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}
