// Package grab arbitrates pinch grabs: at most one hand holds at most one
// object at any time.
package grab

import (
	"fmt"

	"github.com/ayusman/pinchgrab/internal/geom"
	"github.com/ayusman/pinchgrab/internal/gesture"
	"github.com/ayusman/pinchgrab/internal/scene"
)

// DefaultHitBox is the grab area of an object, measured from its top-left corner.
var DefaultHitBox = geom.Size{W: 80, H: 80}

// EventKind describes what an update did.
type EventKind string

const (
	EventNone     EventKind = ""
	EventGrabbed  EventKind = "grabbed"
	EventMoved    EventKind = "moved"
	EventReleased EventKind = "released"
)

// Event reports the transition taken by one Update.
type Event struct {
	Kind      EventKind  `json:"kind,omitempty"`
	ObjectID  string     `json:"object,omitempty"`
	HandIndex int        `json:"hand"`
	Position  geom.Point `json:"position"`
}

// Session records which hand holds which object. Offset is the pinch point
// minus the object position at grab time and never changes afterwards.
type Session struct {
	HandIndex int        `json:"hand"`
	ObjectID  string     `json:"object"`
	Offset    geom.Point `json:"offset"`
}

// Machine is the Idle/Grabbing state machine. The zero value is not usable;
// call NewMachine.
type Machine struct {
	hitBox  geom.Size
	session *Session
}

// NewMachine creates an idle machine. A non-positive hit box selects DefaultHitBox.
func NewMachine(hitBox geom.Size) *Machine {
	if hitBox.W <= 0 || hitBox.H <= 0 {
		hitBox = DefaultHitBox
	}
	return &Machine{hitBox: hitBox}
}

// HitBox returns the hit-test box size.
func (m *Machine) HitBox() geom.Size {
	return m.hitBox
}

// Session returns the active session, if any.
func (m *Machine) Session() (Session, bool) {
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Update advances the machine by one processed tick. states is the classifier
// output for the tick; an empty slice means no hands were seen.
//
// While idle, the pinching hand with the lowest index is the only candidate
// and grabs the first ungrabbed object (registry order) under its point.
// While grabbing, only the owning hand matters: if it is still pinching the
// object follows it at the fixed offset, otherwise the object is released
// where it is.
func (m *Machine) Update(states []gesture.PinchState, reg *scene.Registry) (Event, error) {
	if m.session == nil {
		return m.tryGrab(states, reg)
	}

	owner, ok := findPinching(states, m.session.HandIndex)
	if !ok {
		return m.release(reg)
	}

	pos := owner.Point.Sub(m.session.Offset)
	if err := reg.SetPosition(m.session.ObjectID, pos); err != nil {
		m.session = nil
		return Event{}, fmt.Errorf("move grabbed object: %w", err)
	}

	return Event{
		Kind:      EventMoved,
		ObjectID:  m.session.ObjectID,
		HandIndex: m.session.HandIndex,
		Position:  pos,
	}, nil
}

// Release ends the active session, if any, leaving the object where it is.
func (m *Machine) Release(reg *scene.Registry) (Event, error) {
	if m.session == nil {
		return Event{}, nil
	}
	return m.release(reg)
}

func (m *Machine) tryGrab(states []gesture.PinchState, reg *scene.Registry) (Event, error) {
	candidate, ok := lowestPinching(states)
	if !ok {
		return Event{}, nil
	}

	var target scene.Object
	found := false
	reg.Each(func(o scene.Object) bool {
		if !o.Grabbed && m.hitBox.Contains(o.Position, candidate.Point) {
			target = o
			found = true
			return false
		}
		return true
	})
	if !found {
		return Event{}, nil
	}

	if err := reg.SetGrabbed(target.ID, true); err != nil {
		return Event{}, fmt.Errorf("grab object: %w", err)
	}

	m.session = &Session{
		HandIndex: candidate.HandIndex,
		ObjectID:  target.ID,
		Offset:    candidate.Point.Sub(target.Position),
	}

	return Event{
		Kind:      EventGrabbed,
		ObjectID:  target.ID,
		HandIndex: candidate.HandIndex,
		Position:  target.Position,
	}, nil
}

func (m *Machine) release(reg *scene.Registry) (Event, error) {
	s := m.session
	m.session = nil

	if err := reg.SetGrabbed(s.ObjectID, false); err != nil {
		return Event{}, fmt.Errorf("release object: %w", err)
	}

	obj, _ := reg.Get(s.ObjectID)
	return Event{
		Kind:      EventReleased,
		ObjectID:  s.ObjectID,
		HandIndex: s.HandIndex,
		Position:  obj.Position,
	}, nil
}

// lowestPinching picks the pinching hand with the smallest index.
func lowestPinching(states []gesture.PinchState) (gesture.PinchState, bool) {
	var best gesture.PinchState
	found := false
	for _, s := range states {
		if !s.Pinching {
			continue
		}
		if !found || s.HandIndex < best.HandIndex {
			best = s
			found = true
		}
	}
	return best, found
}

func findPinching(states []gesture.PinchState, hand int) (gesture.PinchState, bool) {
	for _, s := range states {
		if s.HandIndex == hand && s.Pinching {
			return s, true
		}
	}
	return gesture.PinchState{}, false
}
