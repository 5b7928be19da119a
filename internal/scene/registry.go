// Package scene holds the draggable objects shown over the camera view.
package scene

import (
	"errors"
	"fmt"

	"github.com/ayusman/pinchgrab/internal/geom"
)

var (
	// ErrNotFound is returned when an object id is not in the registry.
	ErrNotFound = errors.New("object not found")
	// ErrDuplicateID is returned when two objects share an id.
	ErrDuplicateID = errors.New("duplicate object id")
	// ErrEmptyID is returned for an object without an id.
	ErrEmptyID = errors.New("object id is empty")
)

// Object is a draggable object. Position is the top-left corner in pixels.
type Object struct {
	ID       string     `json:"id" yaml:"id"`
	Asset    string     `json:"asset" yaml:"asset"`
	Position geom.Point `json:"position" yaml:"position"`
	Grabbed  bool       `json:"grabbed" yaml:"-"`
}

// Registry is an ordered set of objects. Order is insertion order and doubles
// as hit-test priority. It is not safe for concurrent use; the frame
// scheduler owns it and hands copies to everyone else.
type Registry struct {
	objects []Object
	index   map[string]int
}

// NewRegistry builds a registry from objects, preserving their order.
// Grabbed flags are cleared: nothing is held at startup.
func NewRegistry(objects []Object) (*Registry, error) {
	r := &Registry{
		objects: make([]Object, 0, len(objects)),
		index:   make(map[string]int, len(objects)),
	}

	for _, o := range objects {
		if o.ID == "" {
			return nil, ErrEmptyID
		}
		if _, ok := r.index[o.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, o.ID)
		}
		o.Grabbed = false
		r.index[o.ID] = len(r.objects)
		r.objects = append(r.objects, o)
	}

	return r, nil
}

// Len returns the number of objects.
func (r *Registry) Len() int {
	return len(r.objects)
}

// Snapshot returns a copy of all objects in registry order.
func (r *Registry) Snapshot() []Object {
	out := make([]Object, len(r.objects))
	copy(out, r.objects)
	return out
}

// Get returns the object with the given id.
func (r *Registry) Get(id string) (Object, bool) {
	i, ok := r.index[id]
	if !ok {
		return Object{}, false
	}
	return r.objects[i], true
}

// SetPosition moves an object.
func (r *Registry) SetPosition(id string, p geom.Point) error {
	i, ok := r.index[id]
	if !ok {
		return fmt.Errorf("set position %q: %w", id, ErrNotFound)
	}
	r.objects[i].Position = p
	return nil
}

// SetGrabbed sets an object's grabbed flag.
func (r *Registry) SetGrabbed(id string, grabbed bool) error {
	i, ok := r.index[id]
	if !ok {
		return fmt.Errorf("set grabbed %q: %w", id, ErrNotFound)
	}
	r.objects[i].Grabbed = grabbed
	return nil
}

// Each calls fn for every object in registry order until fn returns false.
func (r *Registry) Each(fn func(Object) bool) {
	for _, o := range r.objects {
		if !fn(o) {
			return
		}
	}
}

// GrabbedCount returns how many objects are flagged as grabbed.
func (r *Registry) GrabbedCount() int {
	n := 0
	for _, o := range r.objects {
		if o.Grabbed {
			n++
		}
	}
	return n
}
