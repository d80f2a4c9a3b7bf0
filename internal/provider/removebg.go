package provider

import (
	"encoding/json"

	"github.com/cutoutlab/bg-removal-service/pkg/errors"
)

const removeBGEndpoint = "https://api.remove.bg/v1.0/removebg"

// APIKeyHeader is the header remove.bg reads its API key from.
const APIKeyHeader = "X-Api-Key"

// removeBG talks to the remove.bg REST API.
type removeBG struct {
	endpoint string
}

func newRemoveBG(endpointOverride string) *removeBG {
	endpoint := removeBGEndpoint
	if endpointOverride != "" {
		endpoint = endpointOverride
	}
	return &removeBG{endpoint: endpoint}
}

func (r *removeBG) Name() string { return "remove.bg" }

func (r *removeBG) Endpoint() string { return r.endpoint }

func (r *removeBG) FileField() string { return "image_file" }

func (r *removeBG) FormFields() map[string]string {
	return map[string]string{"size": "auto"}
}

func (r *removeBG) APIKeyHeaderName() string { return APIKeyHeader }

// removeBGErrorBody is the error envelope remove.bg returns:
// {"errors":[{"title":"...", "detail":"..."}]}
type removeBGErrorBody struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (r *removeBG) MapError(status int, body []byte) *errors.AppError {
	detail := truncateDetail(body)

	var parsed removeBGErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		detail = parsed.Errors[0].Title
		if parsed.Errors[0].Detail != "" {
			detail = detail + ": " + parsed.Errors[0].Detail
		}
	}

	return mapStatus(status, detail)
}
