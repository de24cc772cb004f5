package api

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is returned when Slack answers with a non-2xx status
type HTTPError struct {
	Method     string
	StatusCode int
	Body       string
	Header     http.Header
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("slack API call to %s failed with status code %d", e.Method, e.StatusCode)
}

// APIError is returned when a response carries ok=false
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack API call to %s returned an error: %s", e.Method, e.Code)
}

// IsAPIError reports whether err is an APIError with the given code
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// describeConnectionError turns a bootstrap error code into an operator-facing message
func describeConnectionError(code string) string {
	switch code {
	case "not_authed":
		return "no authentication token was provided to Slack"
	case "invalid_auth":
		return "the Slack authentication token provided was not valid"
	case "account_inactive":
		return "the user or team associated with the Slack token has been deleted"
	default:
		return "an unknown error occurred connecting to Slack"
	}
}
