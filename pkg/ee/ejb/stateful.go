package ejb

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/interceptor"
)

// Stateful binds one instance to each client session. Calls on a session are
// serialized; a call made from inside a call on the same session re-enters
// without waiting.
type Stateful struct {
	*component.Basic

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id   string
	inst *component.Instance
	mu   sync.Mutex
}

// heldSession marks a request context as already holding a session lock
type heldSession struct{ id string }

// NewStateful creates a stateful component
func NewStateful(cfg *component.Configuration, env *component.Environment) *Stateful {
	s := &Stateful{sessions: make(map[string]*session)}
	s.Basic = component.NewBasic(cfg, env, component.WithOwner(s))
	return s
}

// Kind implements Bean
func (s *Stateful) Kind() Kind { return KindStateful }

// CreateSession implements SessionScoped. The returned id is passed under
// SessionIDKey in the invocation data of later calls.
func (s *Stateful) CreateSession(ctx context.Context) (string, error) {
	inst, err := s.CreateInstance(ctx)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{id: id, inst: inst}
	s.mu.Unlock()
	s.Log().WithField("session", id).Debug("session created")
	return id, nil
}

// Session implements SessionScoped
func (s *Stateful) Session(id string) (*component.Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.inst, true
}

// Sessions returns the number of open sessions
func (s *Stateful) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RemoveSession implements SessionScoped. It waits for a call in progress on
// the session unless made from inside that call.
func (s *Stateful) RemoveSession(ctx context.Context, id string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	if ctx.Value(heldSession{id: id}) == nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
	}
	s.drop(id)
	return sess.inst.Destroy(ctx)
}

// Stop forgets every session; the base stop destroys their instances
func (s *Stateful) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	return s.Basic.Stop(ctx)
}

func (s *Stateful) lookup(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("component %s: %w: %s", s.Name(), ErrNoSuchSession, id)
	}
	return sess, nil
}

func (s *Stateful) drop(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// discard removes the session owning inst without running its pre-destroy
func (s *Stateful) discard(inst *component.Instance) {
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.inst == inst {
			delete(s.sessions, id)
			s.Log().WithField("session", id).Warn("session discarded after system failure")
			break
		}
	}
	s.mu.Unlock()
	inst.Discard()
}

func (s *Stateful) associate(ctx *interceptor.Context) (any, error) {
	id, _ := ctx.PrivateData(SessionIDKey).(string)
	if id == "" {
		return nil, errors.IllegalStatef("invoke", "call on stateful component %s carries no session id", s.Name())
	}
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	held := heldSession{id: id}
	if reqCtx := ctx.Context(); reqCtx.Value(held) == nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		prev := ctx.SetContext(context.WithValue(reqCtx, held, true))
		defer ctx.SetContext(prev)
	}
	// the session may have been removed while this call waited
	if sess.inst.Destroyed() {
		return nil, fmt.Errorf("component %s: %w: %s", s.Name(), ErrNoSuchSession, id)
	}

	res, err := withInstance(ctx, sess.inst)
	if err != nil && IsSystemFailure(err) {
		s.discard(sess.inst)
	}
	return res, err
}

var (
	_ Bean          = (*Stateful)(nil)
	_ SessionScoped = (*Stateful)(nil)
)
