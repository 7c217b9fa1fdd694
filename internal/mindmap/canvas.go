package mindmap

import (
	"math"

	"github.com/foxhui123/AutoQA/internal/suite"
)

// Zoom limits
const (
	MinScale = 0.5
	MaxScale = 2.0
)

// Default viewport size before the first resize
const (
	DefaultWidth  = 800.0
	DefaultHeight = 600.0
)

// Transform maps diagram space to screen space: screen = K*p + (X, Y)
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the untransformed viewport
var Identity = Transform{K: 1}

// Apply maps a diagram point to the screen
func (t Transform) Apply(x, y float64) (float64, float64) {
	return x*t.K + t.X, y*t.K + t.Y
}

// Invert maps a screen point back to the diagram
func (t Transform) Invert(x, y float64) (float64, float64) {
	return (x - t.X) / t.K, (y - t.Y) / t.K
}

// Clamped returns t with its scale kept within [MinScale, MaxScale]
func (t Transform) Clamped() Transform {
	if t.K <= 0 || math.IsNaN(t.K) {
		t.K = 1
	}
	t.K = math.Min(MaxScale, math.Max(MinScale, t.K))
	return t
}

// Canvas is the interactive state of one mind map: the current suite, viewport
// size, pan/zoom transform and selected scenario. It is not safe for concurrent use.
type Canvas struct {
	width, height float64
	margin        Margin

	suite     *suite.TestSuite
	diagram   *Diagram
	transform Transform

	// selected is the index of the selected scenario, -1 when none
	selected int
}

// NewCanvas creates an empty canvas of the given size
func NewCanvas(width, height float64) *Canvas {
	c := &Canvas{
		width:     width,
		height:    height,
		margin:    DefaultMargin,
		transform: Identity,
		selected:  -1,
	}
	c.rebuild()
	return c
}

func (c *Canvas) rebuild() {
	c.diagram = Layout(Build(c.suite), c.width, c.height, c.margin)
}

// SetSuite replaces the suite, redraws the whole diagram and clears the selection
func (c *Canvas) SetSuite(s *suite.TestSuite) {
	c.suite = s
	c.selected = -1
	c.rebuild()
}

// Suite returns the suite being shown
func (c *Canvas) Suite() *suite.TestSuite {
	return c.suite
}

// Resize redraws the diagram for a new viewport size
func (c *Canvas) Resize(width, height float64) {
	c.width, c.height = width, height
	c.rebuild()
}

// Size returns the viewport size
func (c *Canvas) Size() (float64, float64) {
	return c.width, c.height
}

// Diagram returns the geometry of the last layout pass
func (c *Canvas) Diagram() *Diagram {
	return c.diagram
}

// Transform returns the current pan/zoom transform
func (c *Canvas) Transform() Transform {
	return c.transform
}

// SetTransform replaces the transform, clamping its scale
func (c *Canvas) SetTransform(t Transform) {
	c.transform = t.Clamped()
}

// Pan moves the view by a screen-space delta; panning is unbounded
func (c *Canvas) Pan(dx, dy float64) {
	c.transform.X += dx
	c.transform.Y += dy
}

// Zoom scales the view by factor, keeping the screen point (fx, fy) fixed
func (c *Canvas) Zoom(factor, fx, fy float64) {
	if factor <= 0 || math.IsNaN(factor) {
		return
	}

	k := math.Min(MaxScale, math.Max(MinScale, c.transform.K*factor))
	px, py := c.transform.Invert(fx, fy)
	c.transform = Transform{
		X: fx - px*k,
		Y: fy - py*k,
		K: k,
	}
}

// Click hit-tests scenario nodes at a screen point. A hit replaces any prior
// selection; clicking empty space or the root clears it.
func (c *Canvas) Click(x, y float64) (suite.Scenario, bool) {
	dx, dy := c.transform.Invert(x, y)

	// Later nodes are drawn on top, so test them first
	for i := len(c.diagram.Nodes) - 1; i >= 0; i-- {
		n := c.diagram.Nodes[i]
		if n.Type != NodeScenario || !n.Hit(dx, dy) {
			continue
		}
		c.selected = n.Index
		return c.Selected()
	}

	c.selected = -1
	return suite.Scenario{}, false
}

// Select selects the scenario at index directly
func (c *Canvas) Select(index int) bool {
	if index < 0 || index >= c.suite.Len() {
		return false
	}
	c.selected = index
	return true
}

// Dismiss clears the selection
func (c *Canvas) Dismiss() {
	c.selected = -1
}

// Selected returns the selected scenario
func (c *Canvas) Selected() (suite.Scenario, bool) {
	if c.selected < 0 || c.selected >= c.suite.Len() {
		return suite.Scenario{}, false
	}
	return c.suite.Scenarios[c.selected], true
}

// SelectedIndex returns the selected scenario's position, -1 when none
func (c *Canvas) SelectedIndex() int {
	if _, ok := c.Selected(); !ok {
		return -1
	}
	return c.selected
}
