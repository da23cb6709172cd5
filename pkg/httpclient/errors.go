package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/geb2701/storefront/pkg/errors"
)

// ErrServerError marks a downstream 5xx response.
var ErrServerError = errors.New("downstream server error")

// downstreamError accepts both error body shapes we talk to: the envelope
// written by pkg/httputil ({"error":{"code","message"}}) and the backend API's
// flat shape ({"status","error":"Not Found","message"}).
type downstreamError struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	code, message := "", string(bodyBytes)
	var body downstreamError
	if json.Unmarshal(bodyBytes, &body) == nil {
		var env envelopeError
		switch {
		case len(body.Error) > 0 && json.Unmarshal(body.Error, &env) == nil && env.Message != "":
			code, message = env.Code, env.Message
		case body.Message != "":
			message = body.Message
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return mapDownstreamError(resp.StatusCode, code, message, serviceName)
}

// mapDownstreamError translates a downstream status code into an AppError
// that keeps the downstream message visible to our callers.
func mapDownstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: qualifiedMsg,
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.Unauthorized(qualifiedMsg)
	case status == http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(qualifiedMsg)
	case status >= 500:
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: qualifiedMsg,
			Status:  http.StatusServiceUnavailable,
			Err:     fmt.Errorf("%w: status %d", ErrServerError, status),
		}
	default:
		if code == "" {
			code = "DOWNSTREAM_ERROR"
		}
		return &apperrors.AppError{
			Code:    code,
			Message: qualifiedMsg,
			Status:  status,
		}
	}
}

// TransportError converts an error returned by Doer.Do into an AppError.
// Open breakers and exhausted 5xx retries become 503s; anything else is
// returned wrapped with the service name.
func TransportError(err error, serviceName string) error {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrServerError) {
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: serviceName + " is unavailable",
			Status:  http.StatusServiceUnavailable,
			Err:     err,
		}
	}
	return fmt.Errorf("%s: %w", serviceName, err)
}
