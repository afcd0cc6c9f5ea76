package httpapi

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brianfdo/signlearner/internal/globaltime"
	"github.com/brianfdo/signlearner/internal/orchestrator"
)

var (
	errSessionNotFound = errors.New("session not found")
	errSessionLimit    = errors.New("session limit reached")
)

type session struct {
	id        string
	createdAt time.Time
	orch      *orchestrator.Orchestrator

	// Guarded by sessionRegistry.mu.
	lastSeen time.Time
	streams  int
}

// sessionRegistry owns every live orchestrator of the server, keyed by id.
type sessionRegistry struct {
	newOrchestrator func() *orchestrator.Orchestrator
	limit           int

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionRegistry(limit int, factory func() *orchestrator.Orchestrator) *sessionRegistry {
	return &sessionRegistry{
		newOrchestrator: factory,
		limit:           limit,
		sessions:        make(map[string]*session),
	}
}

func (r *sessionRegistry) create() (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limit > 0 && len(r.sessions) >= r.limit {
		return nil, errSessionLimit
	}
	now := globaltime.UTC()
	sess := &session{
		id:        uuid.NewString(),
		createdAt: now,
		orch:      r.newOrchestrator(),
		lastSeen:  now,
	}
	r.sessions[sess.id] = sess
	return sess, nil
}

// get returns the session and marks it as active.
func (r *sessionRegistry) get(id string) (*session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errSessionNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	sess.lastSeen = globaltime.UTC()
	return sess, nil
}

// attach marks an open event stream on sess. Sessions with a stream are never
// reaped. The returned function detaches it.
func (r *sessionRegistry) attach(sess *session) (detach func()) {
	r.mu.Lock()
	sess.streams++
	sess.lastSeen = globaltime.UTC()
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			sess.streams--
			sess.lastSeen = globaltime.UTC()
			r.mu.Unlock()
		})
	}
}

// reapIdle closes every session without an open stream whose last activity is
// older than ttl, and returns their ids.
func (r *sessionRegistry) reapIdle(ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}
	cutoff := globaltime.UTC().Add(-ttl)

	r.mu.Lock()
	var expired []*session
	for id, sess := range r.sessions {
		if sess.streams > 0 || sess.lastSeen.After(cutoff) {
			continue
		}
		expired = append(expired, sess)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, sess := range expired {
		sess.orch.Close()
		ids = append(ids, sess.id)
	}
	return ids
}

// remove unregisters the session and closes its orchestrator.
func (r *sessionRegistry) remove(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return errSessionNotFound
	}
	sess.orch.Close()
	return nil
}

func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		sessions = append(sessions, sess)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.orch.Close()
	}
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
