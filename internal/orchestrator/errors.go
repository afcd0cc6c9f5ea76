package orchestrator

import (
	"errors"

	"github.com/brianfdo/signlearner/internal/signapi"
)

const (
	DefaultTranslateErrorMessage = "Failed to translate text. Please try again."
	DefaultLessonErrorMessage    = "Failed to generate lesson plan. Please try again."
)

var (
	ErrClosed = errors.New("orchestrator is closed")
	errPanic  = errors.New("request pipeline panicked")
)

// DefaultErrorMessage returns the static message shown when op fails without
// a server-supplied message.
func DefaultErrorMessage(op Operation) string {
	if op == OperationLesson {
		return DefaultLessonErrorMessage
	}
	return DefaultTranslateErrorMessage
}

func errorInfoFor(op Operation, err error) *ErrorInfo {
	message := signapi.ServerMessage(err)
	if message == "" {
		message = DefaultErrorMessage(op)
	}
	return &ErrorInfo{
		Message:   message,
		Operation: op,
		cause:     err,
	}
}
