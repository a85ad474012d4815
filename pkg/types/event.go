package types

import "time"

// Event kinds pushed to external observers (WebSocket, MCP progress).
const (
	EventRunStart     = "workflow-start"
	EventStepStart    = "workflow-step"
	EventStepComplete = "workflow-step-complete"
	EventStepFailed   = "workflow-step-failed"
	EventLog          = "workflow-log"
	EventRunComplete  = "workflow-complete"
)

// Event 对外广播的执行事件（序列化为 JSON 推给 WebSocket 客户端）
type Event struct {
	Type       string    `json:"type"`
	WorkflowID string    `json:"workflowId,omitempty"`
	DeviceID   string    `json:"deviceId,omitempty"`
	StepID     string    `json:"stepId,omitempty"`
	StepType   string    `json:"stepType,omitempty"`
	StepName   string    `json:"stepName,omitempty"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Success    bool      `json:"success,omitempty"`
	DurationMS int64     `json:"durationMs,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
