// Package device 提供设备能力端口的具体实现：
// 走 HTTP 控制面的快速通道（droidrun portal）和走 adb shell 的
// 慢速兜底通道，以及把两者组合起来的控制器。
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/ports"
)

const defaultPortalTimeout = 15 * time.Second

// PortalClient 通过设备上的 HTTP 控制面执行动作。
// 控制面理解全部动作词汇，包括 adb 做不到的 tap_index / get_state。
type PortalClient struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
}

// portalResponse 控制面的统一响应格式
type portalResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewPortalClient creates a client for the device control plane at
// baseURL (e.g. http://127.0.0.1:9008).
func NewPortalClient(baseURL string) *PortalClient {
	return &PortalClient{
		baseURL: baseURL,
		timeout: defaultPortalTimeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         defaultPortalTimeout,
			WriteTimeout:        defaultPortalTimeout,
		},
	}
}

var _ ports.DeviceController = (*PortalClient)(nil)

// Invoke sends one action to the control plane. tap_element is resolved
// client-side: fetch the UI state, locate the element by text, then tap
// its center.
func (p *PortalClient) Invoke(ctx context.Context, deviceID, action string, params map[string]string) (string, error) {
	if action == "tap_element" {
		return p.tapElement(ctx, deviceID, params["text"])
	}
	return p.post(deviceID, action, params)
}

func (p *PortalClient) post(deviceID, action string, params map[string]string) (string, error) {
	body, err := json.Marshal(map[string]any{"action": action, "params": params})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/api/devices/%s/actions", p.baseURL, deviceID))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := p.client.DoTimeout(req, resp, p.timeout); err != nil {
		return "", fmt.Errorf("portal request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("portal returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	var parsed portalResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("portal response not json: %w", err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("portal rejected %s: %s", action, parsed.Message)
	}

	// get_state 的结果在 data 里，整段原样返回给上层解析
	if action == "get_state" && len(parsed.Data) > 0 {
		return string(parsed.Data), nil
	}
	if parsed.Message != "" {
		return parsed.Message, nil
	}
	return action + " ok", nil
}

func (p *PortalClient) tapElement(_ context.Context, deviceID, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("tap_element needs a text locator")
	}

	state, err := p.post(deviceID, "get_state", nil)
	if err != nil {
		return "", fmt.Errorf("tap_element: fetch state: %w", err)
	}

	x, y, err := ElementCenter([]byte(state), text)
	if err != nil {
		return "", fmt.Errorf("tap_element %q: %w", text, err)
	}

	logger.Debug("tap_element %q 命中坐标 (%d, %d)", text, x, y)
	_, err = p.post(deviceID, "tap", map[string]string{
		"x": strconv.Itoa(x),
		"y": strconv.Itoa(y),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("tapped %q at (%d, %d)", text, x, y), nil
}
