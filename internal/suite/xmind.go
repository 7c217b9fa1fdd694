package suite

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"regexp"

	"github.com/google/uuid"
)

// XMind topic titles per level
const (
	xmindDataPrefix     = "数据准备:\n"
	xmindStepsPrefix    = "操作步骤:\n"
	xmindActionPrefix   = "执行动作:\n"
	xmindExpectedPrefix = "预期结果:\n"
)

// XMindSheet is one canvas of an XMind document
type XMindSheet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	RootTopic XMindTopic `json:"rootTopic"`
}

// XMindTopic is a node of the mind map
type XMindTopic struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	StructureClass string         `json:"structureClass,omitempty"`
	Children       *XMindChildren `json:"children,omitempty"`
	Style          *XMindStyle    `json:"style,omitempty"`
}

type XMindChildren struct {
	Attached []XMindTopic `json:"attached"`
}

type XMindStyle struct {
	Properties map[string]string `json:"properties"`
}

var whitespace = regexp.MustCompile(`\s+`)

// XMindFileName returns the download name for the suite's mind map
func XMindFileName(s *TestSuite) string {
	name := ""
	if s != nil {
		name = s.FeatureName
	}
	return whitespace.ReplaceAllString(name, "_") + "_测试用例.xmind"
}

// XMindContent builds the content.json document: one sheet whose root topic is
// the feature, with each scenario expanding into a chain of detail topics
func XMindContent(s *TestSuite) []XMindSheet {
	root := XMindTopic{
		ID:             "root-" + uuid.NewString(),
		StructureClass: "org.xmind.ui.logic.right",
		Children:       &XMindChildren{Attached: []XMindTopic{}},
	}
	if s != nil {
		root.Title = s.FeatureName
		for i, sc := range s.Scenarios {
			root.Children.Attached = append(root.Children.Attached, scenarioTopic(sc, i))
		}
	}

	return []XMindSheet{{
		ID:        "root-sheet",
		Title:     "画布 1",
		RootTopic: root,
	}}
}

func scenarioTopic(sc Scenario, idx int) XMindTopic {
	// Ids carry the index so duplicate scenario ids still give distinct topics
	suffix := fmt.Sprintf("%s-%d", sc.ID, idx)

	result := XMindTopic{
		ID:    "result-" + suffix,
		Title: xmindExpectedPrefix + sc.ExpectedResult,
		Style: &XMindStyle{Properties: map[string]string{
			"shape-class":       "org.xmind.topicShape.roundedRect",
			"fill":              "#E8F5E9",
			"border-line-color": "#4CAF50",
		}},
	}
	action := XMindTopic{
		ID:       "action-" + suffix,
		Title:    xmindActionPrefix + sc.ExecutionAction,
		Children: &XMindChildren{Attached: []XMindTopic{result}},
	}
	steps := XMindTopic{
		ID:       "steps-" + suffix,
		Title:    xmindStepsPrefix + sc.Steps,
		Children: &XMindChildren{Attached: []XMindTopic{action}},
	}
	data := XMindTopic{
		ID:       "data-" + suffix,
		Title:    xmindDataPrefix + sc.DataPreparation,
		Children: &XMindChildren{Attached: []XMindTopic{steps}},
	}

	return XMindTopic{
		ID:       "scenario-" + suffix,
		Title:    fmt.Sprintf("[%s] %s", sc.ID, sc.ScenarioName),
		Children: &XMindChildren{Attached: []XMindTopic{data}},
	}
}

// WriteXMind writes the suite as an .xmind archive
func WriteXMind(w io.Writer, s *TestSuite) error {
	zw := zip.NewWriter(w)

	entries := []struct {
		name string
		doc  any
	}{
		{"content.json", XMindContent(s)},
		{"manifest.json", map[string]any{
			"file-entries": map[string]any{
				"content.json":  map[string]any{},
				"metadata.json": map[string]any{},
			},
		}},
		{"metadata.json", map[string]any{
			"creator": map[string]string{"name": "AutoQA Agent"},
		}},
	}

	for _, e := range entries {
		f, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", e.name, err)
		}
		if err := json.NewEncoder(f).Encode(e.doc); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish xmind archive: %w", err)
	}
	return nil
}
