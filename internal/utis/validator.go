package utils

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

var allowedTypes = map[string]string{
	"image/png":       "image",
	"image/jpeg":      "image",
	"image/jpg":       "image",
	"image/gif":       "image",
	"image/webp":      "image",
	"video/mp4":       "video",
	"video/mpeg":      "video",
	"video/quicktime": "video",
	"video/x-msvideo": "video",
	"video/webm":      "video",
}

var allowedExtensions = map[string][]string{
	"image": {".jpg", ".jpeg", ".png", ".gif", ".webp"},
	"video": {".mp4", ".m4v", ".mpeg", ".mpg", ".mov", ".avi", ".webm"},
}

var validate = validator.New()

// ResolveContentType normalizes the declared content type, sniffing the
// payload when the client sent nothing useful.
func ResolveContentType(declared string, head []byte) string {
	ct := strings.TrimSpace(declared)
	if ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			ct = mt
		}
	}
	ct = strings.ToLower(ct)
	if ct == "" || ct == "application/octet-stream" {
		if len(head) > 512 {
			head = head[:512]
		}
		ct, _, _ = strings.Cut(http.DetectContentType(head), ";")
	}
	return ct
}

// ValidateFileType returns the media kind for an allowed content type and
// file extension pair.
func ValidateFileType(filename, contentType string) (string, error) {
	kind, ok := allowedTypes[contentType]
	if !ok {
		return "", NewValidationError("Invalid file type", fmt.Sprintf("content type %q is not allowed", contentType))
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range allowedExtensions[kind] {
		if e == ext {
			return kind, nil
		}
	}
	return "", NewValidationError("Invalid file extension", fmt.Sprintf("extension %q is not allowed for %s files", ext, kind))
}

func ValidateFileSize(size, max int64) error {
	if size <= 0 {
		return NewValidationError("File is empty", "")
	}
	if size > max {
		return NewValidationError("File too large", fmt.Sprintf("maximum size is %d bytes", max))
	}
	return nil
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidateStruct runs struct tag validation and converts failures to a
// validation AppError.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fe := FormatValidationErrors(err)
	if len(fe) == 0 {
		return NewValidationError("Invalid request data", err.Error())
	}
	msgs := make([]string, len(fe))
	for i, e := range fe {
		msgs[i] = e.Message
	}
	return NewValidationError("Invalid request data", strings.Join(msgs, "; "))
}

func FormatValidationErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make([]ValidationError, len(ve))
		for i, fe := range ve {
			out[i] = ValidationError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Value: fmt.Sprintf("%v", fe.Value()),
			}
			switch fe.Tag() {
			case "required":
				out[i].Message = fmt.Sprintf("%s is required", fe.Field())
			case "min":
				out[i].Message = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
			case "max":
				out[i].Message = fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
			case "oneof":
				out[i].Message = fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
			default:
				out[i].Message = fmt.Sprintf("Validation failed on field '%s' for tag '%s'", fe.Field(), fe.Tag())
			}
		}
		return out
	}
	return nil
}
