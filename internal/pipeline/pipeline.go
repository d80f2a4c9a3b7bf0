package pipeline

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"

	"github.com/cutoutlab/bg-removal-service/internal/provider"
	"github.com/cutoutlab/bg-removal-service/internal/storage"
	"github.com/cutoutlab/bg-removal-service/internal/validator"
	"github.com/cutoutlab/bg-removal-service/pkg/errors"
)

// Upload is the incoming file part as seen by the pipeline, before
// anything has been written to disk.
type Upload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	SizeBytes   int64
}

// Result is the successful outcome: the processed image packed into a
// data URI. It exists only in memory during response construction.
type Result struct {
	DataURI   string
	SizeBytes int
}

const dataURIPrefix = "data:image/png;base64,"

// Pipeline runs one upload through validate → forward → encode. The temp
// file acquired for a request is released on every exit path before the
// result or error is returned.
type Pipeline struct {
	validator *validator.Validator
	store     *storage.TempStore
	remover   provider.Remover
	logger    *slog.Logger
}

func New(v *validator.Validator, store *storage.TempStore, remover provider.Remover, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		validator: v,
		store:     store,
		remover:   remover,
		logger:    logger,
	}
}

// Process takes an upload from received to terminal. ctx carries the
// incoming request's cancellation, so a client disconnect aborts the
// in-flight provider call; the deferred release still runs.
func (p *Pipeline) Process(ctx context.Context, upload *Upload) (*Result, error) {
	if upload == nil || upload.Reader == nil {
		return nil, errors.NewNoImageError()
	}

	// Declared-metadata checks run before any bytes hit the disk.
	if appErr := p.validator.CheckDeclared(upload.ContentType, upload.SizeBytes); appErr != nil {
		return nil, appErr
	}

	handle, err := p.store.Acquire(upload.Reader, upload.Filename)
	if err != nil {
		return nil, err
	}
	defer p.store.Release(handle)

	// The declared Content-Type is client-controlled; the stored bytes
	// must actually be one of the accepted formats.
	if appErr := p.validator.CheckStored(handle.Path); appErr != nil {
		return nil, appErr
	}

	processed, err := p.remover.RemoveBackground(ctx, handle)
	if err != nil {
		return nil, err
	}

	p.logger.Info("background removal succeeded",
		"filename", upload.Filename,
		"input_bytes", handle.Size,
		"output_bytes", len(processed),
	)

	return &Result{
		DataURI:   dataURIPrefix + base64.StdEncoding.EncodeToString(processed),
		SizeBytes: len(processed),
	}, nil
}
