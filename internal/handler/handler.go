package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"

	"github.com/cutoutlab/bg-removal-service/config"
	"github.com/cutoutlab/bg-removal-service/internal/pipeline"
	"github.com/cutoutlab/bg-removal-service/pkg/errors"
	"github.com/cutoutlab/bg-removal-service/pkg/logger"
)

const serviceName = "bg-removal-service"

// uploadField is the multipart form field clients put the image in.
const uploadField = "image"

type Handler struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

func NewHandler(cfg *config.Config, p *pipeline.Pipeline, log *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		pipeline: p,
		logger:   log,
	}
}

// Status handles GET / — liveness plus whether a credential is present.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "running",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"apiKeyConfigured": h.cfg.Provider.Configured(),
	})
}

// Health handles GET /api/health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound handles any unrouted path.
func (h *Handler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"error":   "Route not found",
		"path":    c.Request.URL.Path,
	})
}

// RemoveBackground handles POST /api/remove-bg: extract the file part,
// run the pipeline, answer with a data URI or a mapped error.
func (h *Handler) RemoveBackground(c *gin.Context) {
	requestLog := logger.WithRequest(h.logger, ksuid.New().String(), c.FullPath())

	form, err := c.MultipartForm()
	if err != nil {
		// Not a parseable multipart form. Nothing was written, nothing to release.
		h.respondError(c, requestLog, errors.NewNoImageError())
		return
	}

	files := form.File[uploadField]
	if len(files) == 0 {
		h.respondError(c, requestLog, errors.NewNoImageError())
		return
	}
	if len(files) > 1 {
		// Exactly one file per request; taking the first silently would
		// hide a client bug.
		h.respondError(c, requestLog, errors.New(errors.ErrorTypeInvalidFileType,
			"Exactly one image file must be supplied").
			WithContext("file_count", len(files)))
		return
	}

	header := files[0]
	file, err := header.Open()
	if err != nil {
		h.respondError(c, requestLog, errors.WrapInternalError(err, "failed to open uploaded file"))
		return
	}
	defer file.Close()

	upload := &pipeline.Upload{
		Reader:      file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   header.Size,
	}

	result, err := h.pipeline.Process(c.Request.Context(), upload)
	if err != nil {
		h.respondError(c, requestLog, errors.As(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"image":   result.DataURI,
		"message": "Background removed successfully",
	})
}

func (h *Handler) respondError(c *gin.Context, log *slog.Logger, appErr *errors.AppError) {
	status := appErr.HTTPStatus()

	log.Warn("request failed",
		"error_type", string(appErr.Type),
		"status", status,
		"error", appErr.Error(),
	)

	body := gin.H{
		"success": false,
		"error":   appErr.Message,
	}
	// Raw provider/internal detail stays server-side in production.
	if !h.cfg.IsProduction() {
		if detail, ok := appErr.Context["provider_detail"].(string); ok && detail != "" {
			body["detail"] = detail
		} else if appErr.Err != nil {
			body["detail"] = appErr.Err.Error()
		}
	}

	c.JSON(status, body)
}
