package validator

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/cutoutlab/bg-removal-service/pkg/errors"
)

// allowedTypes is the closed set of MIME types the relay accepts.
// image/jpg is not a registered type but browsers still send it.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Validator enforces the upload constraints before any bytes leave the
// process.
type Validator struct {
	maxSizeBytes int64
}

func New(maxSizeBytes int64) *Validator {
	return &Validator{maxSizeBytes: maxSizeBytes}
}

// CheckDeclared validates the client-declared content type and size. Runs
// before the upload is written to disk so an obviously bad request costs
// no I/O.
func (v *Validator) CheckDeclared(contentType string, sizeBytes int64) *errors.AppError {
	if sizeBytes > v.maxSizeBytes {
		return errors.NewFileTooLargeError(sizeBytes, v.maxSizeBytes)
	}

	normalized := normalizeContentType(contentType)
	if !allowedTypes[normalized] {
		return errors.NewInvalidFileTypeError(contentType)
	}

	return nil
}

// CheckStored sniffs the bytes actually written to the temp file. A
// spoofed Content-Type header passes CheckDeclared but fails here.
func (v *Validator) CheckStored(path string) *errors.AppError {
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return errors.WrapInternalError(err, "failed to sniff uploaded file")
	}

	if !allowedTypes[detected.String()] {
		return errors.NewInvalidFileTypeError(detected.String()).
			WithContext("detected", detected.String())
	}

	return nil
}

func normalizeContentType(contentType string) string {
	// Strip any parameters, e.g. "image/png; charset=binary".
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
