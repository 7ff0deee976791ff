package pluggy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Stable error codes surfaced to callers. LOGIN_REQUIRED needs user action
// (reconnect); ITEM_NOT_FOUND means the connection is gone on the aggregator
// side and retrying will not help.
const (
	CodeLoginRequired = "LOGIN_REQUIRED"
	CodeItemNotFound  = "ITEM_NOT_FOUND"
)

// APIError is a decoded aggregator error response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aggregator error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

// IsLoginRequired reports whether err means the bank connection needs the
// user to re-authenticate. This error must never be swallowed by sync code.
func IsLoginRequired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeLoginRequired
}

// IsItemNotFound reports whether err means the aggregator no longer knows the
// item (deleted or invalid connection).
func IsItemNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeItemNotFound
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeAPIError(path string, status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}

	var decoded errorBody
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Message != "" {
		apiErr.Code = decoded.Code
		apiErr.Message = decoded.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	// Normalize codes the reconciler branches on.
	switch {
	case strings.Contains(apiErr.Code, "LOGIN"), status == http.StatusPreconditionRequired:
		apiErr.Code = CodeLoginRequired
	case apiErr.Code == "":
		if (status == http.StatusBadRequest || status == http.StatusNotFound) && strings.Contains(path, itemsPath) {
			apiErr.Code = CodeItemNotFound
		}
	}

	return apiErr
}
