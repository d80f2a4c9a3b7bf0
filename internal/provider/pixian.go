package provider

import (
	"encoding/json"

	"github.com/cutoutlab/bg-removal-service/pkg/errors"
)

const pixianEndpoint = "https://api.pixian.ai/api/v2/remove-background"

// pixian talks to the Pixian.ai REST API. Auth is HTTP Basic with the
// API id as user and the secret as password.
type pixian struct {
	endpoint string
}

func newPixian(endpointOverride string) *pixian {
	endpoint := pixianEndpoint
	if endpointOverride != "" {
		endpoint = endpointOverride
	}
	return &pixian{endpoint: endpoint}
}

func (p *pixian) Name() string { return "pixian.ai" }

func (p *pixian) Endpoint() string { return p.endpoint }

func (p *pixian) FileField() string { return "image" }

func (p *pixian) FormFields() map[string]string { return nil }

// Pixian's documented auth is basic; this only matters when the scheme is
// overridden to api_key_header.
func (p *pixian) APIKeyHeaderName() string { return "X-Api-Key" }

// pixianErrorBody is Pixian's flat error shape:
// {"error":{"status":400,"code":"...","message":"..."}}
type pixianErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *pixian) MapError(status int, body []byte) *errors.AppError {
	detail := truncateDetail(body)

	var parsed pixianErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		detail = parsed.Error.Message
	}

	return mapStatus(status, detail)
}
