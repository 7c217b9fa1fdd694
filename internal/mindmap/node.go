// Package mindmap lays out a test suite as a horizontal node-link tree and
// handles pan, zoom and click-to-select on the rendered diagram.
package mindmap

import (
	"strings"

	"github.com/foxhui123/AutoQA/internal/suite"
)

// FallbackRootName labels the root when the suite has no feature name
const FallbackRootName = "功能"

// NodeType distinguishes the root from scenario leaves
type NodeType string

const (
	NodeRoot     NodeType = "root"
	NodeScenario NodeType = "scenario"
)

// Node is the derived hierarchy for one render pass. It owns no state of its own.
type Node struct {
	Name     string          `json:"name"`
	Type     NodeType        `json:"type"`
	Children []*Node         `json:"children,omitempty"`
	Data     *suite.Scenario `json:"data,omitempty"`

	// Index is the scenario's position in the suite, -1 for the root
	Index int `json:"index"`
}

// Build converts a suite into a two-level tree: feature root, one child per scenario
func Build(s *suite.TestSuite) *Node {
	root := &Node{Name: FallbackRootName, Type: NodeRoot, Index: -1}
	if s == nil {
		return root
	}
	if strings.TrimSpace(s.FeatureName) != "" {
		root.Name = s.FeatureName
	}

	root.Children = make([]*Node, 0, len(s.Scenarios))
	for i := range s.Scenarios {
		sc := s.Scenarios[i]
		root.Children = append(root.Children, &Node{
			Name:  sc.ScenarioName,
			Type:  NodeScenario,
			Data:  &sc,
			Index: i,
		})
	}
	return root
}

// walk visits nodes depth-first, parents before children
func (n *Node) walk(depth int, fn func(n *Node, depth int)) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(depth+1, fn)
	}
}
