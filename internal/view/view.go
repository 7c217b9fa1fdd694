// Package view holds per-tab generation state: the current suite, the request
// ordering guard and the mind-map canvas the user pans, zooms and clicks.
package view

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/foxhui123/AutoQA/internal/llm"
	"github.com/foxhui123/AutoQA/internal/mindmap"
	"github.com/foxhui123/AutoQA/internal/suite"
)

// ErrBusy is returned by Begin while a request is in flight
var ErrBusy = errors.New("a generation request is already in progress")

// Kind is the input a view generates from
type Kind = llm.InputKind

// Tab is the kind of generation tab a view backs
type Tab string

const (
	TabNewRequirement    Tab = "new-requirement"
	TabLegacyRequirement Tab = "legacy-requirement"
	TabFlowchart         Tab = "flowchart"
)

// Tabs lists every tab kind in display order
var Tabs = []Tab{TabNewRequirement, TabLegacyRequirement, TabFlowchart}

// ParseTab accepts a tab kind by name. The input kinds text and image are
// accepted as the new-requirement and flowchart tabs; blank means new-requirement.
func ParseTab(s string) (Tab, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(TabNewRequirement), string(llm.InputText):
		return TabNewRequirement, nil
	case string(TabLegacyRequirement):
		return TabLegacyRequirement, nil
	case string(TabFlowchart), string(llm.InputImage):
		return TabFlowchart, nil
	}
	return "", fmt.Errorf("unknown view kind %q", s)
}

// Input returns the kind of input the tab generates from
func (t Tab) Input() Kind {
	if t == TabFlowchart {
		return llm.InputImage
	}
	return llm.InputText
}

// Status represents the current state of a view
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// View is one generation tab
type View struct {
	mu sync.Mutex

	id        string
	tab       Tab
	kind      Kind
	status    Status
	suite     *suite.TestSuite
	err       error
	token     string
	canvas    *mindmap.Canvas
	createdAt time.Time
	updatedAt time.Time
}

// State is a point-in-time copy of a view
type State struct {
	ID        string            `json:"id"`
	Tab       Tab               `json:"tab"`
	Kind      Kind              `json:"kind"`
	Status    Status            `json:"status"`
	Token     string            `json:"token,omitempty"`
	Suite     *suite.TestSuite  `json:"suite,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind llm.ErrorKind     `json:"error_kind,omitempty"`
	Transform mindmap.Transform `json:"transform"`
	Selected  *suite.Scenario   `json:"selected,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New creates an idle view with a default-sized canvas
func New(tab Tab) *View {
	now := time.Now()
	return &View{
		id:        uuid.New().String(),
		tab:       tab,
		kind:      tab.Input(),
		status:    StatusIdle,
		canvas:    mindmap.NewCanvas(mindmap.DefaultWidth, mindmap.DefaultHeight),
		createdAt: now,
		updatedAt: now,
	}
}

func (v *View) ID() string { return v.id }

func (v *View) Tab() Tab { return v.tab }

func (v *View) Kind() Kind { return v.kind }

// Begin starts a request. It clears the previous result and returns the token
// the response must present to Complete.
func (v *View) Begin() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.status == StatusPending {
		return "", ErrBusy
	}

	v.token = uuid.New().String()
	v.status = StatusPending
	v.suite = nil
	v.err = nil
	v.canvas.SetSuite(nil)
	v.touch()

	return v.token, nil
}

// Complete applies a response. It returns false when token is no longer current.
func (v *View) Complete(token string, s *suite.TestSuite, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if token == "" || token != v.token || v.status != StatusPending {
		log.Debug().
			Str("view", v.id).
			Str("token", token).
			Msg("discarding stale generation result")
		return false
	}

	if err == nil && s == nil {
		err = llm.NewError(llm.KindMalformedResponse, "", nil, "generation returned no test suite")
	}

	if err != nil {
		v.status = StatusFailed
		v.err = err
		v.suite = nil
		v.canvas.SetSuite(nil)
	} else {
		v.status = StatusReady
		v.err = nil
		v.suite = s
		v.canvas.SetSuite(s)
	}
	v.touch()

	return true
}

// Reset abandons any in-flight request and clears the view
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.token = ""
	v.status = StatusIdle
	v.suite = nil
	v.err = nil
	v.canvas.SetSuite(nil)
	v.canvas.SetTransform(mindmap.Identity)
	v.touch()
}

// State returns a copy of the view's state
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := State{
		ID:        v.id,
		Tab:       v.tab,
		Kind:      v.kind,
		Status:    v.status,
		Suite:     v.suite,
		Transform: v.canvas.Transform(),
		CreatedAt: v.createdAt,
		UpdatedAt: v.updatedAt,
	}
	if v.status == StatusPending {
		st.Token = v.token
	}
	if v.err != nil {
		st.Error = v.err.Error()
		st.ErrorKind = llm.KindOf(v.err)
	}
	if sc, ok := v.canvas.Selected(); ok {
		st.Selected = &sc
	}
	return st
}

// Status returns the current status
func (v *View) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Suite returns the current suite, nil unless the view is ready
func (v *View) Suite() *suite.TestSuite {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.suite
}

// Err returns the error of the last failed request
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Diagram returns the laid-out mind map with the current viewport transform
func (v *View) Diagram() (*mindmap.Diagram, mindmap.Transform) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.canvas.Diagram(), v.canvas.Transform()
}

// RenderSVG writes the mind map as the user currently sees it
func (v *View) RenderSVG(w io.Writer) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.canvas.RenderSVG(w)
}

// Resize relayouts the mind map for a new viewport size
func (v *View) Resize(width, height float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.canvas.Resize(width, height)
}

// SetTransform replaces the viewport transform; the scale is clamped
func (v *View) SetTransform(t mindmap.Transform) mindmap.Transform {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.canvas.SetTransform(t)
	return v.canvas.Transform()
}

// Pan moves the viewport by a screen-space delta
func (v *View) Pan(dx, dy float64) mindmap.Transform {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.canvas.Pan(dx, dy)
	return v.canvas.Transform()
}

// Zoom scales the viewport around a screen point
func (v *View) Zoom(factor, fx, fy float64) mindmap.Transform {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.canvas.Zoom(factor, fx, fy)
	return v.canvas.Transform()
}

// Click hit-tests a screen point; a scenario hit becomes the selection
func (v *View) Click(x, y float64) (suite.Scenario, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.canvas.Click(x, y)
}

// Selected returns the scenario shown in the detail panel
func (v *View) Selected() (suite.Scenario, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.canvas.Selected()
}

// Dismiss closes the detail panel
func (v *View) Dismiss() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.canvas.Dismiss()
}

func (v *View) touch() {
	v.updatedAt = time.Now()
}
