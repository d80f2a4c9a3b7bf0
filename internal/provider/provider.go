package provider

import (
	"net/http"

	"github.com/cutoutlab/bg-removal-service/config"
	"github.com/cutoutlab/bg-removal-service/pkg/errors"
)

// Adapter captures the per-provider variation: where to send the upload,
// what the multipart body looks like, and how to read the provider's
// error responses. The relay pipeline is provider-agnostic above this
// interface.
type Adapter interface {
	Name() string

	// Endpoint is the URL the multipart POST goes to.
	Endpoint() string

	// FileField is the multipart field name carrying the image bytes.
	FileField() string

	// FormFields are extra non-file fields included in the body.
	FormFields() map[string]string

	// APIKeyHeaderName is the header the provider reads an API key from
	// when the api_key_header scheme is in use.
	APIKeyHeaderName() string

	// MapError translates a non-2xx provider response into a typed error.
	MapError(status int, body []byte) *errors.AppError
}

// Credential applies exactly one auth header to an outbound request.
type Credential struct {
	Scheme config.AuthScheme
	Key    string
	Secret string
}

func CredentialFromConfig(cfg config.ProviderConfig) Credential {
	return Credential{
		Scheme: cfg.AuthScheme,
		Key:    cfg.Key,
		Secret: cfg.Secret,
	}
}

// Apply sets the auth header for the configured scheme.
func (c Credential) Apply(req *http.Request, apiKeyHeader string) {
	switch c.Scheme {
	case config.AuthApiKeyHeader:
		req.Header.Set(apiKeyHeader, c.Key)
	case config.AuthBearerToken:
		req.Header.Set("Authorization", "Bearer "+c.Key)
	case config.AuthBasicAuth:
		req.SetBasicAuth(c.Key, c.Secret)
	}
}

// ForName returns the adapter for the configured provider. The endpoint
// override (set in tests and staging) wins over the adapter default.
func ForName(name config.ProviderName, endpointOverride string) (Adapter, error) {
	switch name {
	case config.ProviderRemoveBG:
		return newRemoveBG(endpointOverride), nil
	case config.ProviderPixian:
		return newPixian(endpointOverride), nil
	default:
		return nil, errors.NewConfigurationError("unknown provider: " + string(name))
	}
}

// mapStatus is the shared status mapping both providers follow. Adapters
// only diverge on how they extract detail from the body.
func mapStatus(status int, detail string) *errors.AppError {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewAuthenticationError("Invalid or expired provider credential").
			WithContext("provider_status", status)
	case http.StatusBadRequest:
		return errors.NewInvalidImageError("Provider rejected the image").
			WithContext("provider_detail", detail)
	case http.StatusPaymentRequired:
		return errors.NewQuotaExhaustedError()
	case http.StatusTooManyRequests:
		return errors.NewRateLimitedError()
	default:
		return errors.NewProviderError(status, detail)
	}
}

// truncateDetail bounds the provider body we keep for diagnostics.
func truncateDetail(body []byte) string {
	const maxDetail = 512
	if len(body) > maxDetail {
		return string(body[:maxDetail]) + "..."
	}
	return string(body)
}
