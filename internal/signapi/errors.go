package signapi

import (
	"errors"
	"fmt"
)

// ErrDecode marks responses that arrived but could not be validated or decoded.
var ErrDecode = errors.New("decode response")

// APIError describes a request the remote service rejected, or a response
// that arrived without the expected shape.
type APIError struct {
	Status    int
	Message   string
	RequestID string
	Err       error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("signlearner api status %d: %s", e.Status, e.Message)
	case e.Message != "":
		return "signlearner api: " + e.Message
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("signlearner api status %d: %v", e.Status, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Status != 0:
		return fmt.Sprintf("signlearner api status %d", e.Status)
	}
	return "signlearner api error"
}

func (e *APIError) Unwrap() error { return e.Err }

// ServerMessage returns the message the server supplied in its error payload,
// or an empty string when there was none.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func decodeError(requestID string, err error) error {
	return &APIError{
		RequestID: requestID,
		Err:       fmt.Errorf("%w: %w", ErrDecode, err),
	}
}
