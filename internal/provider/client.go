package provider

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/cutoutlab/bg-removal-service/config"
	"github.com/cutoutlab/bg-removal-service/internal/storage"
	"github.com/cutoutlab/bg-removal-service/pkg/errors"
)

// Remover is the seam the pipeline depends on; tests swap in stubs.
type Remover interface {
	RemoveBackground(ctx context.Context, handle *storage.Handle) ([]byte, error)
}

// Client performs the single outbound call to the background-removal
// provider. No retries: a failed attempt is terminal for the request.
type Client struct {
	adapter    Adapter
	credential Credential
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(adapter Adapter, credential Credential, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		adapter:    adapter,
		credential: credential,
		// Timeout covers the whole exchange including reading the
		// response body; there is no cap on the response size itself.
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// RemoveBackground uploads the stored image and returns the processed
// bytes on HTTP 200. Non-2xx statuses and transport failures come back as
// typed errors per the adapter's mapping.
func (c *Client) RemoveBackground(ctx context.Context, handle *storage.Handle) ([]byte, error) {
	if !c.credentialConfigured() {
		return nil, errors.NewConfigurationError("provider credential is not configured")
	}

	req, err := c.buildRequest(ctx, handle)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.mapTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.mapTransportError(err)
	}

	c.logger.Info("provider call finished",
		"provider", c.adapter.Name(),
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_bytes", len(body),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.adapter.MapError(resp.StatusCode, body)
	}

	return body, nil
}

func (c *Client) buildRequest(ctx context.Context, handle *storage.Handle) (*http.Request, error) {
	file, err := os.Open(handle.Path)
	if err != nil {
		return nil, errors.WrapInternalError(err, "failed to open temp file").
			WithContext("path", handle.Path)
	}
	defer func() {
		_ = file.Close()
	}()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(c.adapter.FileField(), handle.OriginalName)
	if err != nil {
		return nil, errors.WrapInternalError(err, "failed to create multipart file field")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.WrapInternalError(err, "failed to copy image into request body")
	}

	for field, value := range c.adapter.FormFields() {
		_ = writer.WriteField(field, value)
	}
	if err := writer.Close(); err != nil {
		return nil, errors.WrapInternalError(err, "failed to finalize multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adapter.Endpoint(), body)
	if err != nil {
		return nil, errors.WrapInternalError(err, "failed to build provider request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.credential.Apply(req, c.adapter.APIKeyHeaderName())

	return req, nil
}

func (c *Client) credentialConfigured() bool {
	if c.credential.Scheme == "" {
		return false
	}
	// Basic auth needs both halves; sending an empty password would just
	// bounce off the provider as a 401.
	if c.credential.Scheme == config.AuthBasicAuth {
		return c.credential.Key != "" && c.credential.Secret != ""
	}
	return c.credential.Key != ""
}

// mapTransportError distinguishes "the provider took too long" from "the
// provider could not be reached at all".
func (c *Client) mapTransportError(err error) *errors.AppError {
	if isTimeout(err) {
		return errors.WrapTimeoutError(err, "Background removal service timed out")
	}
	return errors.WrapServiceUnavailableError(err, "Background removal service is unreachable")
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	if stderrors.As(err, &t) {
		return t.Timeout()
	}
	return false
}
