package tray

import (
	"sync"
	"testing"

	"github.com/ayusman/pinchgrab/internal/grab"
	"github.com/ayusman/pinchgrab/internal/render"
)

type switchState struct {
	mu      sync.Mutex
	enabled bool
}

func (s *switchState) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *switchState) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func attached(enabled bool) (*Tray, *switchState) {
	ctrl := &switchState{enabled: enabled}
	tr := New()
	tr.Attach(ctrl)
	return tr, ctrl
}

func TestTray_RenderTracksHolder(t *testing.T) {
	tr, _ := attached(true)

	tr.Render(render.Frame{Enabled: true, Session: &grab.Session{ObjectID: "banana"}})
	if got := tr.Holder(); got != "banana" {
		t.Errorf("Holder() = %q, want banana", got)
	}

	tr.Render(render.Frame{Enabled: true})
	if got := tr.Holder(); got != "" {
		t.Errorf("Holder() = %q, want empty", got)
	}
}

func TestTray_Toggle(t *testing.T) {
	tr, ctrl := attached(true)

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.Toggle()
	tr.Toggle()

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}
	if !ctrl.IsEnabled() || !tr.IsEnabled() {
		t.Error("expected enabled after two toggles")
	}
}

func TestTray_StartsDisabled(t *testing.T) {
	tr, _ := attached(false)
	if tr.IsEnabled() || tr.Shown() {
		t.Error("expected disabled tray")
	}
}

func TestTray_ToggleFollowsExternalChanges(t *testing.T) {
	tr, ctrl := attached(true)

	// Processing is paused elsewhere; the pause frame reaches the tray.
	ctrl.SetEnabled(false)
	tr.Render(render.Frame{Enabled: false})
	if tr.Shown() {
		t.Error("label still shows enabled after pause frame")
	}

	// One click resumes rather than pausing again.
	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })
	tr.Toggle()

	if !ctrl.IsEnabled() {
		t.Error("toggle did not resume processing")
	}
	if len(got) != 1 || !got[0] {
		t.Errorf("toggle callbacks = %v, want [true]", got)
	}
	if !tr.Shown() {
		t.Error("label does not show enabled after resume")
	}
}

func TestTray_ToggleUnattached(t *testing.T) {
	tr := New()
	called := false
	tr.OnToggle(func(bool) { called = true })

	tr.Toggle()

	if called || tr.IsEnabled() {
		t.Error("unattached tray should ignore toggles")
	}
}

func TestTray_Settings(t *testing.T) {
	tr, _ := attached(true)
	called := false
	tr.OnSettings(func() { called = true })

	tr.handleSettings()

	if !called {
		t.Error("settings callback not called")
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{holderLabel(""), "Holding: nothing"},
		{holderLabel("watermelon"), "Holding: watermelon"},
		{toggleLabel(true), "● Enabled"},
		{toggleLabel(false), "○ Disabled"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("label = %q, want %q", tt.got, tt.want)
		}
	}
}
