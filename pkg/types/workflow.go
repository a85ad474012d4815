package types

// Step type identifiers. Type 字段决定步骤由哪个分支执行。
const (
	StepAction    = "action"
	StepCondition = "condition"
	StepLoop      = "loop"
	StepWhile     = "while"
	StepParallel  = "parallel"
	StepPython    = "python"
	StepScripter  = "scripter"
	StepPrompt    = "prompt"
	StepWait      = "wait"
	StepExtract   = "extract"
	StepSkill     = "skill"
)

// KnownStepTypes lists every step type the interpreter understands,
// in the order they are dispatched.
var KnownStepTypes = []string{
	StepAction, StepCondition, StepLoop, StepWhile, StepParallel,
	StepPython, StepScripter, StepPrompt, StepWait, StepExtract, StepSkill,
}

// ErrorStrategy 步骤失败时的处理策略
type ErrorStrategy string

const (
	// ErrorStrategyAbort 终止整个工作流（默认）
	ErrorStrategyAbort ErrorStrategy = "abort"
	// ErrorStrategySkip 记录失败并继续下一步
	ErrorStrategySkip ErrorStrategy = "skip"
	// ErrorStrategyRetry 重试若干次，全部失败后终止
	ErrorStrategyRetry ErrorStrategy = "retry"
	// ErrorStrategyFallback 执行备用步骤序列后继续
	ErrorStrategyFallback ErrorStrategy = "fallback"
)

// ErrorPolicy controls what happens when a step fails.
type ErrorPolicy struct {
	Strategy ErrorStrategy  `json:"strategy" yaml:"strategy"`
	Retries  int            `json:"retries,omitempty" yaml:"retries,omitempty"`
	Fallback []WorkflowStep `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// SelectOption is one choice of a select-typed workflow input.
type SelectOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// WorkflowInput declares a named parameter of a workflow definition.
// Type is one of text, number, boolean, select.
type WorkflowInput struct {
	Key         string         `json:"key" yaml:"key"`
	Label       string         `json:"label,omitempty" yaml:"label,omitempty"`
	Type        string         `json:"type" yaml:"type"`
	Required    bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any            `json:"default,omitempty" yaml:"default,omitempty"`
	Placeholder string         `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options     []SelectOption `json:"options,omitempty" yaml:"options,omitempty"`
	Min         *float64       `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64       `json:"max,omitempty" yaml:"max,omitempty"`
}

// WorkflowStep 工作流步骤。一个结构承载所有步骤类型，
// Type 决定哪些字段有意义，其余字段被忽略。
// 字段基本都是可选的，校验发生在解析和执行时。
type WorkflowStep struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// action
	Action string         `json:"action,omitempty" yaml:"action,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// condition / while
	Condition string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	Then      []WorkflowStep `json:"then,omitempty" yaml:"then,omitempty"`
	Else      []WorkflowStep `json:"else,omitempty" yaml:"else,omitempty"`

	// loop / while
	Count         string         `json:"count,omitempty" yaml:"count,omitempty"`
	Variable      string         `json:"variable,omitempty" yaml:"variable,omitempty"`
	Body          []WorkflowStep `json:"body,omitempty" yaml:"body,omitempty"`
	MaxIterations int            `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`

	// parallel
	Branches [][]WorkflowStep `json:"branches,omitempty" yaml:"branches,omitempty"`

	// python / scripter / prompt
	Script   string `json:"script,omitempty" yaml:"script,omitempty"`
	AIPrompt string `json:"aiPrompt,omitempty" yaml:"aiPrompt,omitempty"`
	Prompt   string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	SaveTo   string `json:"saveTo,omitempty" yaml:"saveTo,omitempty"`

	// wait
	Duration      string `json:"duration,omitempty" yaml:"duration,omitempty"`
	WaitCondition string `json:"waitCondition,omitempty" yaml:"waitCondition,omitempty"`

	// extract
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`

	// skill
	SkillID string `json:"skillId,omitempty" yaml:"skillId,omitempty"`

	// DelayAfter 步骤成功后的延迟（毫秒），0 表示使用工作流默认值
	DelayAfter int64 `json:"delayAfter,omitempty" yaml:"delayAfter,omitempty"`

	OnError *ErrorPolicy `json:"onError,omitempty" yaml:"onError,omitempty"`
}

// DisplayName returns the human readable name of a step,
// falling back to "type(id)" when no name was set.
func (s *WorkflowStep) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type + "(" + s.ID + ")"
}

// WorkflowDefinition 不可变的工作流模板。执行器从不修改定义，
// 所有运行时状态保存在执行上下文里。
type WorkflowDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`

	Inputs  []WorkflowInput `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Steps   []WorkflowStep  `json:"steps" yaml:"steps"`
	Outputs []string        `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// Timeout 整体超时（秒），0 表示不限制
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// StepDelay 步骤间默认延迟（毫秒），0 表示使用引擎默认值
	StepDelay int64 `json:"stepDelay,omitempty" yaml:"stepDelay,omitempty"`
}
