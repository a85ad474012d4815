package engine

import (
	"errors"
	"fmt"
)

// ErrorCode 引擎错误码
type ErrorCode string

const (
	// ErrCodeBadDefinition 工作流定义本身有问题（未知步骤类型、字段冲突等）
	ErrCodeBadDefinition ErrorCode = "BAD_DEFINITION"
	// ErrCodeUnknownAction 动作名不在动作表里
	ErrCodeUnknownAction ErrorCode = "UNKNOWN_ACTION"
	// ErrCodeMissingParam 动作缺少必需参数
	ErrCodeMissingParam ErrorCode = "MISSING_PARAM"
	// ErrCodeInvalidCount loop 的 count 解析失败
	ErrCodeInvalidCount ErrorCode = "INVALID_COUNT"
	// ErrCodeWaitTimeout wait 条件在时限内未满足
	ErrCodeWaitTimeout ErrorCode = "WAIT_TIMEOUT"
	// ErrCodePortError 外部端口（设备、脚本、代码生成）调用失败
	ErrCodePortError ErrorCode = "PORT_ERROR"
	// ErrCodeEntitlementDenied AI 额度耗尽或配额服务拒绝
	ErrCodeEntitlementDenied ErrorCode = "ENTITLEMENT_DENIED"
	// ErrCodeCanceled 上下文被取消
	ErrCodeCanceled ErrorCode = "CANCELED"
)

// EngineError 带错误码和步骤定位的引擎错误
type EngineError struct {
	Code    ErrorCode
	Message string
	StepID  string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, stepID, format string, args ...any) *EngineError {
	return &EngineError{Code: code, StepID: stepID, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, stepID string, cause error, message string) *EngineError {
	return &EngineError{Code: code, StepID: stepID, Message: message, Cause: cause}
}

// CodeOf returns the engine error code of err, or empty when err is not
// an EngineError.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsCode reports whether err carries the given engine error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
