package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brianfdo/signlearner/internal/globaltime"
	"github.com/brianfdo/signlearner/internal/signapi"
)

// Backend is the remote SignLearner API as seen by the orchestrator.
type Backend interface {
	TextToASL(ctx context.Context, req signapi.TextToASLRequest) (*signapi.TextToASLResponse, error)
	GenerateLesson(ctx context.Context, req signapi.LessonRequest) (*signapi.LessonResponse, error)
}

type Option func(*Orchestrator)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithDefaults replaces the lesson defaults used for unset request options.
func WithDefaults(defaults RequestOptions) Option {
	return func(o *Orchestrator) {
		o.defaults = defaults.resolve(DefaultOptions())
	}
}

// Orchestrator owns the request state of one UI session. Translate and
// GenerateLesson start remote calls in the background; outcomes are observed
// through State, Subscribe or Wait. Only the most recently started call may
// settle the state.
type Orchestrator struct {
	backend  Backend
	logger   zerolog.Logger
	defaults RequestOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	generation  uint64
	revision    uint64
	state       State
	subscribers map[uint64]chan State
	nextSubID   uint64
	closed      bool
}

func New(backend Backend, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		backend:     backend,
		logger:      zerolog.Nop(),
		defaults:    DefaultOptions(),
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[uint64]chan State),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.state = State{Phase: PhaseIdle, UpdatedAt: globaltime.UTC()}
	return o
}

// Defaults returns the lesson options applied to unset request fields.
func (o *Orchestrator) Defaults() RequestOptions {
	return o.defaults
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe returns a channel that receives the current snapshot immediately
// and every later one. The channel holds at most one pending snapshot, always
// the newest, so slow readers skip intermediate states. The returned function
// unsubscribes; the channel is closed on unsubscribe or Close.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = ch
	ch <- o.state
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if existing, ok := o.subscribers[id]; ok {
				delete(o.subscribers, id)
				close(existing)
			}
		})
	}
}

// Wait blocks until the state is no longer loading and returns it.
func (o *Orchestrator) Wait(ctx context.Context) (State, error) {
	ch, unsubscribe := o.Subscribe()
	defer unsubscribe()

	for {
		select {
		case snapshot, ok := <-ch:
			if !ok {
				return o.State(), ErrClosed
			}
			if !snapshot.Loading() {
				return snapshot, nil
			}
		case <-ctx.Done():
			return o.State(), ctx.Err()
		}
	}
}

// Translate starts a text-to-ASL request for text. Blank text is ignored.
func (o *Orchestrator) Translate(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	o.start(OperationTranslate, func(ctx context.Context) (outcome, error) {
		resp, err := o.backend.TextToASL(ctx, signapi.TextToASLRequest{
			Text:     trimmed,
			FastMode: true,
		})
		if err != nil {
			return outcome{}, err
		}
		result, err := newTranslationResult(trimmed, resp)
		if err != nil {
			return outcome{}, err
		}
		return outcome{translation: result}, nil
	})
}

// GenerateLesson starts a lesson-plan request for text. Blank text is
// ignored; zero option fields fall back to the orchestrator defaults.
func (o *Orchestrator) GenerateLesson(text string, opts RequestOptions) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	resolved := opts.resolve(o.defaults)
	quick, ultraFast := resolved.Mode.Flags()

	o.start(OperationLesson, func(ctx context.Context) (outcome, error) {
		resp, err := o.backend.GenerateLesson(ctx, signapi.LessonRequest{
			Prompt:     trimmed,
			Age:        resolved.Age,
			Experience: string(resolved.Experience),
			QuickMode:  quick,
			UltraFast:  ultraFast,
		})
		if err != nil {
			return outcome{}, err
		}
		result, err := newLessonResult(resolved, resp)
		if err != nil {
			return outcome{}, err
		}
		return outcome{lesson: result}, nil
	})
}

// Close ends the session. In-flight calls are cancelled and their results
// discarded; subscriber channels are closed. Close waits for background work.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.cancel()
	for id, ch := range o.subscribers {
		delete(o.subscribers, id)
		close(ch)
	}
	o.mu.Unlock()

	o.wg.Wait()
}

type outcome struct {
	translation *TranslationResult
	lesson      *LessonResult
}

type call func(ctx context.Context) (outcome, error)

func (o *Orchestrator) start(op Operation, fn call) {
	requestID := uuid.NewString()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.logger.Warn().Str("operation", string(op)).Msg("request ignored: session closed")
		return
	}
	o.generation++
	generation := o.generation
	o.state = State{
		Phase:      PhaseLoading,
		Generation: generation,
		Operation:  op,
		RequestID:  requestID,
		UpdatedAt:  globaltime.UTC(),
	}
	o.publishLocked()
	o.wg.Add(1)
	o.mu.Unlock()

	o.logger.Debug().
		Uint64("generation", generation).
		Str("operation", string(op)).
		Str("request_id", requestID).
		Msg("request started")

	ctx := signapi.ContextWithRequestID(o.ctx, requestID)
	go o.run(ctx, generation, op, requestID, fn)
}

func (o *Orchestrator) run(ctx context.Context, generation uint64, op Operation, requestID string, fn call) {
	defer o.wg.Done()

	started := globaltime.Now()
	result, err := invoke(ctx, fn)
	o.settle(generation, op, requestID, result, err, globaltime.Since(started))
}

// invoke runs fn and converts a panic anywhere in the call or decode path
// into an error so the state never stays loading.
func invoke(ctx context.Context, fn call) (result outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = outcome{}
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return fn(ctx)
}

func (o *Orchestrator) settle(generation uint64, op Operation, requestID string, result outcome, err error, latency time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || generation != o.generation {
		o.logger.Debug().
			Uint64("generation", generation).
			Uint64("current_generation", o.generation).
			Str("operation", string(op)).
			Str("request_id", requestID).
			Dur("latency", latency).
			Bool("closed", o.closed).
			Msg("stale response discarded")
		return
	}

	next := State{
		Generation: generation,
		Operation:  op,
		RequestID:  requestID,
		UpdatedAt:  globaltime.UTC(),
	}
	if err != nil {
		next.Phase = PhaseFailed
		next.Err = errorInfoFor(op, err)
		o.logger.Warn().
			Err(err).
			Uint64("generation", generation).
			Str("operation", string(op)).
			Str("request_id", requestID).
			Dur("latency", latency).
			Str("message", next.Err.Message).
			Msg("request failed")
	} else {
		next.Phase = PhaseSuccess
		next.Translation = result.translation
		next.Lesson = result.lesson
		o.logger.Info().
			Uint64("generation", generation).
			Str("operation", string(op)).
			Str("request_id", requestID).
			Dur("latency", latency).
			Msg("request succeeded")
	}

	o.state = next
	o.publishLocked()
}

// publishLocked delivers the current state to every subscriber, replacing any
// snapshot still pending in a mailbox. o.mu must be held.
func (o *Orchestrator) publishLocked() {
	o.revision++
	o.state.Revision = o.revision
	for _, ch := range o.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- o.state
	}
}
