package types

// TaskSpec is one unit of work for the fan-out coordinator:
// a workflow to run against a single device.
type TaskSpec struct {
	TaskID   string             `json:"taskId" yaml:"taskId"`
	DeviceID string             `json:"deviceId" yaml:"deviceId"`
	Workflow WorkflowDefinition `json:"workflow" yaml:"workflow"`
	Inputs   map[string]any     `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// TaskResult 单个任务的结果。Result 在任务 panic 或被取消时可能为 nil。
type TaskResult struct {
	TaskID     string          `json:"taskId" yaml:"taskId"`
	DeviceID   string          `json:"deviceId" yaml:"deviceId"`
	Success    bool            `json:"success" yaml:"success"`
	Result     *WorkflowResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS int64           `json:"durationMs" yaml:"durationMs"`
}

// BatchReport 一批任务的汇总报告。延迟分位数来自 HDR 直方图。
type BatchReport struct {
	Total        int          `json:"total" yaml:"total"`
	Succeeded    int          `json:"succeeded" yaml:"succeeded"`
	Failed       int          `json:"failed" yaml:"failed"`
	Results      []TaskResult `json:"results" yaml:"results"`
	DurationMS   int64        `json:"durationMs" yaml:"durationMs"`
	LatencyP50MS int64        `json:"latencyP50Ms" yaml:"latencyP50Ms"`
	LatencyP95MS int64        `json:"latencyP95Ms" yaml:"latencyP95Ms"`
	LatencyMaxMS int64        `json:"latencyMaxMs" yaml:"latencyMaxMs"`
}
