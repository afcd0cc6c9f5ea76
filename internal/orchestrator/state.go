package orchestrator

import "time"

// Phase is the variant tag of a request state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailed  Phase = "failed"
)

type Operation string

const (
	OperationTranslate Operation = "translate"
	OperationLesson    Operation = "generate_lesson"
)

// State is one published snapshot of an orchestrator session. Only the fields
// belonging to Phase are set: Translation or Lesson on success, Err on failure.
// Result values are never mutated after publication. Revision increases with
// every publish; Generation only with every started request.
type State struct {
	Phase       Phase              `json:"phase"`
	Revision    uint64             `json:"revision"`
	Generation  uint64             `json:"generation"`
	Operation   Operation          `json:"operation,omitempty"`
	RequestID   string             `json:"request_id,omitempty"`
	Translation *TranslationResult `json:"translation,omitempty"`
	Lesson      *LessonResult      `json:"lesson,omitempty"`
	Err         *ErrorInfo         `json:"error,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (s State) Loading() bool { return s.Phase == PhaseLoading }

// Settled reports whether the state is a final outcome of a request.
func (s State) Settled() bool {
	return s.Phase == PhaseSuccess || s.Phase == PhaseFailed
}

// ErrorInfo is the user-facing description of a failed request.
type ErrorInfo struct {
	Message   string    `json:"message"`
	Operation Operation `json:"operation"`

	cause error
}

// Cause returns the underlying error, kept for logging only.
func (e *ErrorInfo) Cause() error {
	if e == nil {
		return nil
	}
	return e.cause
}
