package rest

import (
	"time"

	"droidflow/orchestrator/pkg/types"
)

// ExecuteRequest 发起一次执行
type ExecuteRequest struct {
	Workflow types.WorkflowDefinition `json:"workflow"`
	DeviceID string                   `json:"deviceId"`
	Inputs   map[string]any           `json:"inputs,omitempty"`
}

// ExecuteResponse 执行已受理
type ExecuteResponse struct {
	ExecutionID string `json:"executionId"`
	Status      string `json:"status"`
}

// BatchRequest 同一工作流在多台设备上执行
type BatchRequest struct {
	Workflow    types.WorkflowDefinition `json:"workflow"`
	Devices     []string                 `json:"devices"`
	Inputs      map[string]any           `json:"inputs,omitempty"`
	MaxParallel int                      `json:"maxParallel,omitempty"`
}

// ValidateRequest 静态检查一个工作流定义
type ValidateRequest struct {
	Workflow types.WorkflowDefinition `json:"workflow"`
}

// ValidateResponse 检查结果
type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings,omitempty"`
}

// ExecutionRecord 一次执行的状态快照
type ExecutionRecord struct {
	ExecutionID string                `json:"executionId"`
	WorkflowID  string                `json:"workflowId"`
	DeviceID    string                `json:"deviceId"`
	Status      string                `json:"status"` // running / completed / failed
	StartedAt   time.Time             `json:"startedAt"`
	FinishedAt  *time.Time            `json:"finishedAt,omitempty"`
	Result      *types.WorkflowResult `json:"result,omitempty"`
}

// ErrorResponse 统一错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
