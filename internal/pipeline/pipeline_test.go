package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutoutlab/bg-removal-service/config"
	"github.com/cutoutlab/bg-removal-service/internal/provider"
	"github.com/cutoutlab/bg-removal-service/internal/storage"
	"github.com/cutoutlab/bg-removal-service/internal/validator"
	"github.com/cutoutlab/bg-removal-service/pkg/errors"
)

// stubRemover records calls and plays back a canned result.
type stubRemover struct {
	calls  int
	result []byte
	err    error

	// path of the handle seen on the last call, for leak checks
	lastPath string
}

func (s *stubRemover) RemoveBackground(_ context.Context, handle *storage.Handle) ([]byte, error) {
	s.calls++
	s.lastPath = handle.Path
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func pngUpload(content []byte) *Upload {
	return &Upload{
		Reader:      bytes.NewReader(content),
		Filename:    "photo.png",
		ContentType: "image/png",
		SizeBytes:   int64(len(content)),
	}
}

// pngContent returns bytes that pass content sniffing.
func pngContent(payload string) []byte {
	header := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	return append(header, []byte(payload)...)
}

// newTestPipeline returns a pipeline backed by a fresh temp dir, plus the
// dir itself so tests can assert nothing is left behind.
func newTestPipeline(t *testing.T, maxBytes int64, remover *stubRemover) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := storage.NewTempStore(dir, maxBytes, log)
	require.NoError(t, err)
	return New(validator.New(maxBytes), store, remover, log), dir
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files must not outlive the request")
}

func TestProcessSuccess(t *testing.T) {
	t.Parallel()

	processed := []byte{0x89, 0x50, 0x4e, 0x47, 0xaa, 0xbb}
	remover := &stubRemover{result: processed}
	p, dir := newTestPipeline(t, 10<<20, remover)

	result, err := p.Process(context.Background(), pngUpload(pngContent("pixels")))
	require.NoError(t, err)

	assert.Equal(t, 1, remover.calls)
	assert.Equal(t, len(processed), result.SizeBytes)

	// Round-trip: the data URI payload decodes to exactly the provider bytes.
	require.True(t, strings.HasPrefix(result.DataURI, "data:image/png;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(result.DataURI, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, processed, decoded)

	assertNoTempFiles(t, dir)
}

func TestProcessNilUpload(t *testing.T) {
	t.Parallel()

	remover := &stubRemover{}
	p, _ := newTestPipeline(t, 10<<20, remover)

	_, err := p.Process(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeNoImage))
	assert.Zero(t, remover.calls)
}

func TestProcessRejectsBeforeProviderCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		upload   *Upload
		wantType errors.ErrorType
	}{
		{
			name: "disallowed declared type",
			upload: &Upload{
				Reader:      strings.NewReader("gif!"),
				Filename:    "anim.gif",
				ContentType: "image/gif",
				SizeBytes:   4,
			},
			wantType: errors.ErrorTypeInvalidFileType,
		},
		{
			name: "declared size over cap",
			upload: &Upload{
				Reader:      strings.NewReader("tiny"),
				Filename:    "huge.jpg",
				ContentType: "image/jpeg",
				SizeBytes:   15 << 20,
			},
			wantType: errors.ErrorTypeFileTooLarge,
		},
		{
			name: "spoofed content type",
			upload: &Upload{
				Reader:      strings.NewReader("just some text pretending"),
				Filename:    "fake.png",
				ContentType: "image/png",
				SizeBytes:   25,
			},
			wantType: errors.ErrorTypeInvalidFileType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remover := &stubRemover{result: []byte("never used")}
			p, dir := newTestPipeline(t, 10<<20, remover)

			_, err := p.Process(context.Background(), tt.upload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantType), "got %v", err)
			assert.Zero(t, remover.calls, "provider must not be called for rejected uploads")
			assertNoTempFiles(t, dir)
		})
	}
}

func TestProcessStreamOverCap(t *testing.T) {
	t.Parallel()

	// Declared size lies under the cap; the actual stream does not.
	remover := &stubRemover{}
	p, dir := newTestPipeline(t, 32, remover)

	upload := &Upload{
		Reader:      bytes.NewReader(pngContent(strings.Repeat("x", 100))),
		Filename:    "liar.png",
		ContentType: "image/png",
		SizeBytes:   10,
	}

	_, err := p.Process(context.Background(), upload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeFileTooLarge))
	assert.Zero(t, remover.calls)
	assertNoTempFiles(t, dir)
}

func TestProcessProviderFailureReleasesTempFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"auth failure", errors.NewAuthenticationError("bad key")},
		{"quota", errors.NewQuotaExhaustedError()},
		{"timeout", errors.NewTimeoutError("too slow")},
		{"unavailable", errors.NewServiceUnavailableError("down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remover := &stubRemover{err: tt.err}
			p, dir := newTestPipeline(t, 10<<20, remover)

			_, err := p.Process(context.Background(), pngUpload(pngContent("pixels")))
			require.Error(t, err)
			assert.Equal(t, 1, remover.calls)

			// The handle the provider saw is gone afterwards.
			_, statErr := os.Stat(remover.lastPath)
			assert.True(t, os.IsNotExist(statErr))
			assertNoTempFiles(t, dir)
		})
	}
}

func TestProcessCancellationReleasesTempFile(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		// Hold the request open until the caller gives up.
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer srv.Close()

	adapter, err := provider.ForName(config.ProviderRemoveBG, srv.URL)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	dir := t.TempDir()
	store, err := storage.NewTempStore(dir, 10<<20, log)
	require.NoError(t, err)

	client := provider.NewClient(
		adapter,
		provider.Credential{Scheme: config.AuthApiKeyHeader, Key: "k"},
		30*time.Second,
		log,
	)
	p := New(validator.New(10<<20), store, client, log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err = p.Process(ctx, pngUpload(pngContent("pixels")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeServiceUnavailable), "got %v", err)
	assertNoTempFiles(t, dir)
}

func TestProcessRepeatedFailuresDoNotLeak(t *testing.T) {
	t.Parallel()

	remover := &stubRemover{err: errors.NewServiceUnavailableError("down")}
	p, dir := newTestPipeline(t, 10<<20, remover)

	for i := 0; i < 20; i++ {
		_, err := p.Process(context.Background(), pngUpload(pngContent("pixels")))
		require.Error(t, err)
	}
	assertNoTempFiles(t, dir)
}
