package suite

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// Section labels used in the markdown export
const (
	LabelDataPreparation = "测试数据准备"
	LabelSteps           = "操作步骤"
	LabelExecution       = "执行动作"
	LabelExpected        = "预期结果"
)

var sectionLabels = []string{LabelDataPreparation, LabelSteps, LabelExecution, LabelExpected}

// bodyIndent prefixes section body lines, nesting them under their label item
const bodyIndent = "  "

var idEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

// Markdown renders the suite as a markdown document. Section bodies are indented
// so headings or labels inside model output stay part of the body.
func Markdown(s *TestSuite) string {
	var b strings.Builder
	if s == nil {
		return ""
	}

	fmt.Fprintf(&b, "# %s\n\n", s.FeatureName)
	for _, sc := range s.Scenarios {
		fmt.Fprintf(&b, "## %s: %s\n", idEscaper.Replace(sc.ID), sc.ScenarioName)
		writeSection(&b, LabelDataPreparation, sc.DataPreparation)
		writeSection(&b, LabelSteps, sc.Steps)
		writeSection(&b, LabelExecution, sc.ExecutionAction)
		writeSection(&b, LabelExpected, sc.ExpectedResult)
		b.WriteString("\n")
	}
	return b.String()
}

func writeSection(b *strings.Builder, label, body string) {
	fmt.Fprintf(b, "- **%s**:\n", label)
	for _, line := range strings.Split(body, "\n") {
		if line != "" {
			b.WriteString(bodyIndent)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

// splitHeading cuts a scenario heading at the first unescaped ": " and unescapes the id
func splitHeading(h string) (id, name string) {
	var b strings.Builder
	for i := 0; i < len(h); i++ {
		switch {
		case h[i] == '\\' && i+1 < len(h):
			i++
			b.WriteByte(h[i])
		case h[i] == ':' && i+1 < len(h) && h[i+1] == ' ':
			return b.String(), h[i+2:]
		default:
			b.WriteByte(h[i])
		}
	}
	return b.String(), ""
}

// ParseMarkdown reads a document produced by Markdown back into a suite
func ParseMarkdown(md string) (*TestSuite, error) {
	suite := &TestSuite{}
	var (
		current *Scenario
		section *string
		lines   []string
		sawHead bool
	)

	flush := func() {
		if section != nil {
			*section = strings.TrimRight(strings.Join(lines, "\n"), "\n")
		}
		section, lines = nil, nil
	}

	sc := bufio.NewScanner(strings.NewReader(md))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")

		switch {
		case !sawHead && strings.HasPrefix(line, "# "):
			suite.FeatureName = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			sawHead = true

		case strings.HasPrefix(line, "## "):
			flush()
			id, name := splitHeading(strings.TrimPrefix(line, "## "))
			suite.Scenarios = append(suite.Scenarios, Scenario{ID: id, ScenarioName: name})
			current = &suite.Scenarios[len(suite.Scenarios)-1]

		case current != nil && sectionField(current, line) != nil:
			flush()
			section = sectionField(current, line)

		case section != nil:
			// unindented lines come from documents written before bodies were indented
			lines = append(lines, strings.TrimPrefix(line, bodyIndent))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read markdown: %w", err)
	}
	flush()

	if !sawHead {
		return nil, errors.New("markdown has no feature heading")
	}
	return suite, nil
}

// sectionField returns the field a label line opens, or nil
func sectionField(s *Scenario, line string) *string {
	for _, label := range sectionLabels {
		if line != "- **"+label+"**:" {
			continue
		}
		switch label {
		case LabelDataPreparation:
			return &s.DataPreparation
		case LabelSteps:
			return &s.Steps
		case LabelExecution:
			return &s.ExecutionAction
		case LabelExpected:
			return &s.ExpectedResult
		}
	}
	return nil
}
