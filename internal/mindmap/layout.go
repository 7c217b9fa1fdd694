package mindmap

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mattn/go-runewidth"
)

// Node styling
const (
	RootRadius     = 8.0
	ScenarioRadius = 6.0
	RootFill       = "#3b82f6"
	ScenarioFill   = "#ffffff"
	NodeStroke     = "#3b82f6"
	LinkStroke     = "#cbd5e1"

	// MaxLabelRunes is where labels are cut and suffixed with "..."
	MaxLabelRunes = 25
	// LabelOffset is the distance from the node centre to its label
	LabelOffset = 15.0
	// CharWidth is the approximate width of one terminal cell of label text at 14px
	CharWidth = 7.0
	// LabelHeight is the approximate height of a label line
	LabelHeight = 16.0
)

// Margin is the space kept free around the tree
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// DefaultMargin leaves room for labels on both sides
var DefaultMargin = Margin{Top: 20, Right: 120, Bottom: 20, Left: 120}

// PositionedNode is a node with diagram coordinates and styling
type PositionedNode struct {
	Node  *Node    `json:"-"`
	Name  string   `json:"name"`
	Type  NodeType `json:"type"`
	Index int      `json:"index"`
	Depth int      `json:"depth"`

	// X runs along depth, Y across siblings; both include the margin
	X float64 `json:"x"`
	Y float64 `json:"y"`

	Radius      float64 `json:"radius"`
	Fill        string  `json:"fill"`
	Label       string  `json:"label"`
	LabelX      float64 `json:"label_x"`
	LabelAnchor string  `json:"label_anchor"`
}

// Link is a parent-child edge drawn as a horizontal cubic curve
type Link struct {
	Source int    `json:"source"`
	Target int    `json:"target"`
	Path   string `json:"path"`
}

// Diagram is the renderable geometry of one layout pass
type Diagram struct {
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
	Margin Margin            `json:"margin"`
	Nodes  []*PositionedNode `json:"nodes"`
	Links  []Link            `json:"links"`
}

// Layout positions the tree inside a width x height viewport. Depth maps to the
// horizontal axis; leaves share the inner height in equal bands and each parent
// is centred over its children.
func Layout(root *Node, width, height float64, margin Margin) *Diagram {
	innerW := math.Max(0, width-margin.Left-margin.Right)
	innerH := math.Max(0, height-margin.Top-margin.Bottom)

	d := &Diagram{Width: width, Height: height, Margin: margin}
	if root == nil {
		return d
	}

	maxDepth := 0
	leaves := 0
	root.walk(0, func(n *Node, depth int) {
		if depth > maxDepth {
			maxDepth = depth
		}
		if len(n.Children) == 0 {
			leaves++
		}
	})

	depthStep := innerW
	if maxDepth > 0 {
		depthStep = innerW / float64(maxDepth)
	}
	band := innerH / float64(leaves)

	positioned := make(map[*Node]*PositionedNode)
	leaf := 0
	var place func(n *Node, depth int) float64
	place = func(n *Node, depth int) float64 {
		var breadth float64
		if len(n.Children) == 0 {
			breadth = (float64(leaf) + 0.5) * band
			leaf++
		} else {
			first := place(n.Children[0], depth+1)
			last := first
			for _, c := range n.Children[1:] {
				last = place(c, depth+1)
			}
			breadth = (first + last) / 2
		}

		positioned[n] = newPositionedNode(n, depth,
			margin.Left+float64(depth)*depthStep,
			margin.Top+breadth)
		return breadth
	}
	place(root, 0)

	index := make(map[*Node]int, len(positioned))
	root.walk(0, func(n *Node, depth int) {
		index[n] = len(d.Nodes)
		d.Nodes = append(d.Nodes, positioned[n])
	})
	root.walk(0, func(n *Node, depth int) {
		for _, c := range n.Children {
			d.Links = append(d.Links, Link{
				Source: index[n],
				Target: index[c],
				Path:   LinkPath(positioned[n].X, positioned[n].Y, positioned[c].X, positioned[c].Y),
			})
		}
	})

	return d
}

func newPositionedNode(n *Node, depth int, x, y float64) *PositionedNode {
	p := &PositionedNode{
		Node:   n,
		Name:   n.Name,
		Type:   n.Type,
		Index:  n.Index,
		Depth:  depth,
		X:      x,
		Y:      y,
		Radius: ScenarioRadius,
		Fill:   ScenarioFill,
		Label:  TruncateLabel(n.Name),
	}
	if depth == 0 {
		p.Radius = RootRadius
		p.Fill = RootFill
	}

	// Labels sit before nodes with children and after leaves
	if len(n.Children) > 0 {
		p.LabelX = -LabelOffset
		p.LabelAnchor = "end"
	} else {
		p.LabelX = LabelOffset
		p.LabelAnchor = "start"
	}
	return p
}

// TruncateLabel shortens s to MaxLabelRunes characters plus "..."
func TruncateLabel(s string) string {
	r := []rune(s)
	if len(r) <= MaxLabelRunes {
		return s
	}
	return string(r[:MaxLabelRunes]) + "..."
}

// LabelWidth estimates the rendered width of a label; CJK runes take two cells
func LabelWidth(label string) float64 {
	return float64(runewidth.StringWidth(label)) * CharWidth
}

// LinkPath draws a smooth horizontal curve from (sx, sy) to (tx, ty)
func LinkPath(sx, sy, tx, ty float64) string {
	mx := (sx + tx) / 2
	return fmt.Sprintf("M%s,%sC%s,%s %s,%s %s,%s",
		num(sx), num(sy), num(mx), num(sy), num(mx), num(ty), num(tx), num(ty))
}

// num formats a coordinate with at most two decimals
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// Hit reports whether the point (x, y) in diagram space lands on the node's
// circle or its label
func (p *PositionedNode) Hit(x, y float64) bool {
	dx, dy := x-p.X, y-p.Y
	if dx*dx+dy*dy <= p.Radius*p.Radius {
		return true
	}

	w := LabelWidth(p.Label)
	left := p.X + p.LabelX
	if p.LabelAnchor == "end" {
		left -= w
	}
	return x >= left && x <= left+w && math.Abs(dy) <= LabelHeight/2
}
