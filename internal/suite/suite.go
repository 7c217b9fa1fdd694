// Package suite holds the generated test-suite value, its parser and its
// tabular and document renderings.
package suite

// Scenario is one generated test case
type Scenario struct {
	ID              string `json:"id"`
	ScenarioName    string `json:"scenarioName"`
	DataPreparation string `json:"dataPreparation"`
	Steps           string `json:"steps"`
	ExecutionAction string `json:"executionAction"`
	ExpectedResult  string `json:"expectedResult"`
}

// TestSuite is a feature and its scenarios in generation order
type TestSuite struct {
	FeatureName string     `json:"featureName"`
	Scenarios   []Scenario `json:"scenarios"`
}

// Fields are the scenario JSON field names in display order
var Fields = []string{"id", "scenarioName", "dataPreparation", "steps", "executionAction", "expectedResult"}

// Headers are the column titles matching Fields
var Headers = []string{"编号", "场景名称", "数据准备", "操作步骤", "执行动作", "预期结果"}

// Values returns the scenario's fields in display order
func (s Scenario) Values() []string {
	return []string{s.ID, s.ScenarioName, s.DataPreparation, s.Steps, s.ExecutionAction, s.ExpectedResult}
}

// Len returns the number of scenarios; a nil suite has none
func (t *TestSuite) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Scenarios)
}

// Lookup finds a scenario by id. Ids are not guaranteed unique; the last one wins.
func (t *TestSuite) Lookup(id string) (Scenario, bool) {
	if t == nil {
		return Scenario{}, false
	}
	for i := len(t.Scenarios) - 1; i >= 0; i-- {
		if t.Scenarios[i].ID == id {
			return t.Scenarios[i], true
		}
	}
	return Scenario{}, false
}

// DuplicateIDs returns ids that appear more than once, in first-seen order
func (t *TestSuite) DuplicateIDs() []string {
	if t == nil {
		return nil
	}

	seen := make(map[string]int, len(t.Scenarios))
	var dups []string
	for _, s := range t.Scenarios {
		seen[s.ID]++
		if seen[s.ID] == 2 {
			dups = append(dups, s.ID)
		}
	}
	return dups
}
