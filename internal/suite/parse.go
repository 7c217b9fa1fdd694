package suite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/foxhui123/AutoQA/internal/llm"
)

// SnippetLength is how many characters of the raw answer an error may quote
const SnippetLength = 50

// Parse extracts and validates a test suite from raw model output.
// Clean JSON is parsed directly; otherwise the span from the first '{' to the
// last '}' is tried, which tolerates fences, reasoning preambles and trailing prose.
// Any failure is a MalformedResponse; nothing is partially accepted.
func Parse(raw string) (*TestSuite, error) {
	text := strings.TrimSpace(raw)

	payload := []byte(text)
	if !json.Valid(payload) {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, malformed(raw, "no JSON object found", nil)
		}
		payload = []byte(text[start : end+1])
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, malformed(raw, "invalid JSON", err)
	}

	featureRaw, ok := top["featureName"]
	if !ok {
		return nil, malformed(raw, "missing featureName", nil)
	}
	feature, ok := decodeString(featureRaw)
	if !ok {
		return nil, malformed(raw, "featureName is not a string", nil)
	}
	if strings.TrimSpace(feature) == "" {
		return nil, malformed(raw, "featureName is blank", nil)
	}

	scenariosRaw, ok := top["scenarios"]
	if !ok {
		return nil, malformed(raw, "missing scenarios", nil)
	}
	var items []json.RawMessage
	if !isKind(scenariosRaw, '[') {
		return nil, malformed(raw, "scenarios is not an array", nil)
	}
	if err := json.Unmarshal(scenariosRaw, &items); err != nil {
		return nil, malformed(raw, "scenarios is not an array", err)
	}

	suite := &TestSuite{
		FeatureName: feature,
		Scenarios:   make([]Scenario, 0, len(items)),
	}
	for i, item := range items {
		s, err := parseScenario(item)
		if err != nil {
			return nil, malformed(raw, fmt.Sprintf("scenario %d: %v", i+1, err), nil)
		}
		suite.Scenarios = append(suite.Scenarios, s)
	}

	return suite, nil
}

func parseScenario(item json.RawMessage) (Scenario, error) {
	if !isKind(item, '{') {
		return Scenario{}, fmt.Errorf("not an object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return Scenario{}, err
	}

	values := make([]string, len(Fields))
	for i, name := range Fields {
		rawValue, ok := fields[name]
		if !ok {
			return Scenario{}, fmt.Errorf("missing %s", name)
		}
		v, ok := decodeString(rawValue)
		if !ok {
			return Scenario{}, fmt.Errorf("%s is not a string", name)
		}
		values[i] = v
	}

	return Scenario{
		ID:              values[0],
		ScenarioName:    values[1],
		DataPreparation: values[2],
		Steps:           values[3],
		ExecutionAction: values[4],
		ExpectedResult:  values[5],
	}, nil
}

// decodeString accepts only a JSON string; null, numbers and objects are rejected
func decodeString(raw json.RawMessage) (string, bool) {
	if !isKind(raw, '"') {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isKind(raw json.RawMessage, first byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == first
}

func malformed(raw, reason string, err error) error {
	return llm.NewError(llm.KindMalformedResponse, "", err,
		"model did not return a valid test suite (%s). Content: %s", reason, Snippet(raw, SnippetLength))
}

// Snippet returns at most n characters of s
func Snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
