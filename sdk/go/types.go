package sdk

import (
	"encoding/json"
	"net/http"
)

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// Healthy reports whether the service considers itself fully up.
func (h HealthStatus) Healthy() bool { return h.Status == "healthy" }

// decodeJSON decodes a plain HTTP response. Error statuses become an
// *AscndError whose code follows the RPC mapping for that status.
func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return &AscndError{Message: http.StatusText(resp.StatusCode), Code: httpStatusCode(resp.StatusCode)}
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func httpStatusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidArgument
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeResourceExhausted
	case http.StatusNotImplemented:
		return CodeUnimplemented
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return CodeUnavailable
	default:
		return CodeUnknown
	}
}
