package types

import "time"

// LogLevel of a workflow log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
	LogSuccess LogLevel = "success"
)

// WorkflowLog 执行过程中产生的一条日志
type WorkflowLog struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Level     LogLevel  `json:"level" yaml:"level"`
	StepID    string    `json:"stepId,omitempty" yaml:"stepId,omitempty"`
	Message   string    `json:"message" yaml:"message"`
}

// ActionRecord is one entry of the execution history that AI steps
// receive as shared state. Result holds whatever the step produced.
type ActionRecord struct {
	StepID     string    `json:"stepId" yaml:"stepId"`
	StepType   string    `json:"stepType" yaml:"stepType"`
	Action     string    `json:"action" yaml:"action"`
	Result     any       `json:"result,omitempty" yaml:"result,omitempty"`
	Success    bool      `json:"success" yaml:"success"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	DurationMS int64     `json:"durationMs" yaml:"durationMs"`
}

// ErrorContext describes the most recent AI step failure. It is handed
// to the code generator so the next attempt can self-correct.
type ErrorContext struct {
	StepID       string `json:"stepId" yaml:"stepId"`
	ErrorMessage string `json:"errorMessage" yaml:"errorMessage"`
	RetryCount   int    `json:"retryCount" yaml:"retryCount"`
	SuggestedFix string `json:"suggestedFix,omitempty" yaml:"suggestedFix,omitempty"`
}

// WorkflowResult 单次工作流执行的最终结果
type WorkflowResult struct {
	Success    bool           `json:"success" yaml:"success"`
	WorkflowID string         `json:"workflowId" yaml:"workflowId"`
	DeviceID   string         `json:"deviceId" yaml:"deviceId"`
	Outputs    map[string]any `json:"outputs" yaml:"outputs"`
	Logs       []WorkflowLog  `json:"logs" yaml:"logs"`
	DurationMS int64          `json:"durationMs" yaml:"durationMs"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
}
