package llm

import (
	"errors"
	"fmt"
	"strings"
)

// SystemPromptJSONOnly keeps free-form models from wrapping the JSON in prose or reasoning
const SystemPromptJSONOnly = "你是一位资深软件测试工程师。请务必只输出纯 JSON 格式数据，不要包含任何思考过程(thinking)或Markdown标记。"

// DefaultLanguage is the natural language of generated content
const DefaultLanguage = "中文"

// ErrEmptyRequirements is returned for blank requirement text
var ErrEmptyRequirements = errors.New("请输入需求描述")

// PromptOptions tune the generated instructions
type PromptOptions struct {
	Language   string
	EdgeCases  bool
	ErrorPaths bool
}

// DefaultPromptOptions asks for Chinese output with full coverage guidance
func DefaultPromptOptions() PromptOptions {
	return PromptOptions{
		Language:   DefaultLanguage,
		EdgeCases:  true,
		ErrorPaths: true,
	}
}

func (o PromptOptions) language() string {
	if strings.TrimSpace(o.Language) == "" {
		return DefaultLanguage
	}
	return o.Language
}

// RequirementPrompt creates a prompt for generating test cases from requirement text
func RequirementPrompt(requirements string, opts PromptOptions) (string, error) {
	if strings.TrimSpace(requirements) == "" {
		return "", ErrEmptyRequirements
	}

	var b strings.Builder
	b.WriteString("作为资深QA，请分析此需求并生成测试用例。\n")
	fmt.Fprintf(&b, "需求描述: \"%s\"\n\n", strings.TrimSpace(requirements))
	writeOutputRules(&b, opts)
	return b.String(), nil
}

// FlowchartPrompt creates a prompt for generating test cases from a flowchart image.
// The image itself travels as a separate inline part of the request.
func FlowchartPrompt(additionalText string, opts PromptOptions) string {
	var b strings.Builder
	b.WriteString("分析流程图并生成测试用例。")
	if note := strings.TrimSpace(additionalText); note != "" {
		b.WriteString(note)
	}
	b.WriteString("\n\n")

	b.WriteString("路径覆盖要求：\n")
	b.WriteString("- 识别流程图中的每一个判断节点，覆盖每个判断节点的所有分支。\n")
	b.WriteString("- 每条从开始到结束的独立路径生成一个测试场景。\n")
	b.WriteString("- 根据分支条件推导具体的边界测试数据（例如条件为 \">1000\" 时，使用略大于 1000 的值，如 1001）。\n\n")

	writeOutputRules(&b, opts)
	return b.String()
}

func writeOutputRules(b *strings.Builder, opts PromptOptions) {
	lang := opts.language()

	b.WriteString("输出要求：\n")
	b.WriteString("1. 必须是严格的 JSON 格式，只输出一个 JSON 对象。\n")
	b.WriteString("2. featureName 为功能名。\n")
	b.WriteString("3. scenarios 数组包含用例细节（id, scenarioName, dataPreparation, steps, executionAction, expectedResult），所有字段均为字符串。\n")
	b.WriteString("4. id 使用 TC_001、TC_002 的格式依次编号。\n")
	b.WriteString("5. dataPreparation、steps、expectedResult 包含多项时，使用换行分隔的编号列表（1. ...\\n2. ...）；只有一项时直接写文本；无需准备数据时写 \"无\"。\n")
	fmt.Fprintf(b, "6. 语言使用%s。\n", lang)

	coverage := []string{"正常流程"}
	if opts.EdgeCases {
		coverage = append(coverage, "边界条件")
	}
	if opts.ErrorPaths {
		coverage = append(coverage, "异常处理")
	}
	fmt.Fprintf(b, "7. 场景覆盖：至少包含%s各一个场景（在需求允许的情况下）。\n", strings.Join(coverage, "、"))
}
