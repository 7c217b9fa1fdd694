package llm

import "google.golang.org/genai"

// SchemaType is a JSON schema value type
type SchemaType string

const (
	TypeObject SchemaType = "object"
	TypeArray  SchemaType = "array"
	TypeString SchemaType = "string"
)

// Schema is a provider-neutral subset of JSON schema used to constrain model output
type Schema struct {
	Type          SchemaType         `json:"type"`
	Description   string             `json:"description,omitempty"`
	Properties    map[string]*Schema `json:"properties,omitempty"`
	PropertyOrder []string           `json:"-"`
	Items         *Schema            `json:"items,omitempty"`
	Required      []string           `json:"required,omitempty"`
}

// scenarioFields pairs each scenario field with its description, in output order
var scenarioFields = [][2]string{
	{"id", "场景编号 (例如: TC_001)"},
	{"scenarioName", "场景名称简述"},
	{"dataPreparation", "测试数据准备"},
	{"steps", "操作步骤"},
	{"executionAction", "执行动作"},
	{"expectedResult", "预期结果"},
}

// TestSuiteSchema returns the shared output schema for a test suite
func TestSuiteSchema() *Schema {
	scenario := &Schema{
		Type:       TypeObject,
		Properties: make(map[string]*Schema, len(scenarioFields)),
	}
	for _, f := range scenarioFields {
		scenario.Properties[f[0]] = &Schema{Type: TypeString, Description: f[1]}
		scenario.PropertyOrder = append(scenario.PropertyOrder, f[0])
		scenario.Required = append(scenario.Required, f[0])
	}

	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"featureName": {Type: TypeString, Description: "被测试的功能名称"},
			"scenarios": {
				Type:        TypeArray,
				Description: "基于需求分析出的测试场景列表",
				Items:       scenario,
			},
		},
		PropertyOrder: []string{"featureName", "scenarios"},
		Required:      []string{"featureName", "scenarios"},
	}
}

// GenAI converts the schema for the hosted SDK
func (s *Schema) GenAI() *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Type:             genaiType(s.Type),
		Description:      s.Description,
		Required:         s.Required,
		PropertyOrdering: s.PropertyOrder,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.GenAI()
		}
	}
	if s.Items != nil {
		out.Items = s.Items.GenAI()
	}
	return out
}

func genaiType(t SchemaType) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}
