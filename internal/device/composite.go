package device

import (
	"context"

	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/ports"
)

// fastOnlyActions 需要 UI 树支持，慢速通道做不了
var fastOnlyActions = map[string]bool{
	"tap_index":   true,
	"tap_element": true,
	"get_state":   true,
}

// Controller 组合控制器：先走快速通道，失败后对支持的动作降级到
// 慢速通道。这是注入给引擎的默认 DeviceController。
type Controller struct {
	fast     ports.DeviceController
	fallback ports.DeviceController
}

// NewController combines a fast control-plane client with a slow
// fallback. Either may be nil; with both nil every Invoke fails.
func NewController(fast, fallback ports.DeviceController) *Controller {
	return &Controller{fast: fast, fallback: fallback}
}

var _ ports.DeviceController = (*Controller)(nil)

func (c *Controller) Invoke(ctx context.Context, deviceID, action string, params map[string]string) (string, error) {
	if c.fast != nil {
		message, err := c.fast.Invoke(ctx, deviceID, action, params)
		if err == nil {
			return message, nil
		}
		if c.fallback == nil || fastOnlyActions[action] {
			return "", err
		}
		logger.Warn("快速通道执行 %s 失败，降级到 adb: %v", action, err)
	}

	if c.fallback == nil {
		return "", errNoTransport(action)
	}
	return c.fallback.Invoke(ctx, deviceID, action, params)
}

type noTransportError string

func (e noTransportError) Error() string {
	return "no transport available for action " + string(e)
}

func errNoTransport(action string) error {
	return noTransportError(action)
}
