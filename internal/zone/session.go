package zone

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/metrowaste/zoneplanner/internal/geo"
)

// SessionState is a phase of the interactive drawing/editing workflow.
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateDrawing       SessionState = "drawing"
	StatePendingSave   SessionState = "pending_save"
	StateEditing       SessionState = "editing"
	StatePendingCommit SessionState = "pending_commit"
)

// ErrInvalidTransition indicates a session call out of sequence.
var ErrInvalidTransition = eris.New("zone: invalid session transition")

// Session drives boundary drawing and editing as explicit synchronous
// transitions instead of host-UI callbacks:
//
//	Idle -> Drawing -> PendingSave -> Idle (saved)
//	Idle -> Editing -> PendingCommit -> Idle (saved)
//
// A Session is not safe for concurrent use; each interactive client
// owns its own.
type Session struct {
	mu       sync.Mutex
	reg      *Registry
	state    SessionState
	pending  [][2]float64
	editName string
}

// NewSession creates an idle session over the given registry.
func NewSession(reg *Registry) *Session {
	return &Session{reg: reg, state: StateIdle}
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginDraw starts drawing a new zone boundary.
func (s *Session) BeginDraw() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return eris.Wrapf(ErrInvalidTransition, "begin draw from %s", s.state)
	}
	s.state = StateDrawing
	s.pending = nil
	return nil
}

// CompleteDraw accepts the drawn ring and validates it. The geometry is
// held until SaveDraw names it.
func (s *Session) CompleteDraw(ring [][2]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDrawing {
		return eris.Wrapf(ErrInvalidTransition, "complete draw from %s", s.state)
	}
	if _, err := geo.NewPolygon(ring); err != nil {
		return err
	}
	s.pending = ring
	s.state = StatePendingSave
	return nil
}

// SaveDraw creates the zone from the pending geometry and returns the
// session to idle.
func (s *Session) SaveDraw(ctx context.Context, name, parentName string) (*Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePendingSave {
		return nil, eris.Wrapf(ErrInvalidTransition, "save draw from %s", s.state)
	}
	z, err := s.reg.Create(ctx, name, s.pending, parentName)
	if err != nil {
		return nil, err
	}
	s.state = StateIdle
	s.pending = nil
	return z, nil
}

// BeginEdit starts editing an existing zone's boundary.
func (s *Session) BeginEdit(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return eris.Wrapf(ErrInvalidTransition, "begin edit from %s", s.state)
	}
	if s.reg.Get(name) == nil {
		return eris.Wrap(ErrNotFound, name)
	}
	s.state = StateEditing
	s.editName = name
	return nil
}

// CommitEdit accepts the edited ring and validates it.
func (s *Session) CommitEdit(ring [][2]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return eris.Wrapf(ErrInvalidTransition, "commit edit from %s", s.state)
	}
	if _, err := geo.NewPolygon(ring); err != nil {
		return err
	}
	s.pending = ring
	s.state = StatePendingCommit
	return nil
}

// SaveEdit applies the pending boundary to the zone under edit.
func (s *Session) SaveEdit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePendingCommit {
		return eris.Wrapf(ErrInvalidTransition, "save edit from %s", s.state)
	}
	if err := s.reg.SetGeometry(ctx, s.editName, s.pending); err != nil {
		return err
	}
	s.state = StateIdle
	s.pending = nil
	s.editName = ""
	return nil
}

// Cancel abandons any in-progress draw or edit and returns to idle.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.pending = nil
	s.editName = ""
}
