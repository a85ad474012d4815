// Package script 提供工作流脚本步骤的 JavaScript 运行时。
// AI 生成的代码和定义里内嵌的代码都在这里执行，每次执行使用
// 全新的 VM，互相之间没有任何共享状态。
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"

	"droidflow/orchestrator/pkg/ports"
)

const defaultScriptTimeout = 30 * time.Second

// Runtime 脚本执行器。device 可以为 nil，此时脚本里的 device()
// 调用会抛异常。
type Runtime struct {
	device     ports.DeviceController
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithTimeout overrides the per-script execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHTTPClient replaces the client used by httpGet/httpPost bindings.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Runtime) { r.httpClient = c }
}

// NewRuntime creates a script runtime bound to a device controller.
func NewRuntime(device ports.DeviceController, opts ...Option) *Runtime {
	r := &Runtime{
		device:     device,
		timeout:    defaultScriptTimeout,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ ports.ScriptRunner = (*Runtime)(nil)

// Run executes code with the execution context exposed as read-only
// bindings. The script reports its value via setResult(), or implicitly
// through its final expression.
func (r *Runtime) Run(ctx context.Context, code string, inputs, variables map[string]any, deviceID string) (*ports.ScriptResult, error) {
	vm := goja.New()
	session := &session{vm: vm, ctx: ctx, runtime: r, deviceID: deviceID}
	session.bind(inputs, variables)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt("script timed out")
		case <-done:
		}
	}()

	value, err := vm.RunString(code)
	close(done)

	result := &ports.ScriptResult{Output: strings.Join(session.logs, "\n")}
	if err != nil {
		result.Error = err.Error()
		if runCtx.Err() == context.DeadlineExceeded {
			result.Error = "script timed out after " + r.timeout.String()
		}
		return result, nil
	}

	result.Success = true
	if session.resultSet {
		result.Result = session.result
	} else if value != nil && !goja.IsUndefined(value) && !goja.IsNull(value) {
		result.Result = value.Export()
	}
	return result, nil
}

// session 单次脚本执行的绑定状态
type session struct {
	vm       *goja.Runtime
	ctx      context.Context
	runtime  *Runtime
	deviceID string

	logs      []string
	result    any
	resultSet bool
}

func (s *session) bind(inputs, variables map[string]any) {
	vm := s.vm

	// 上下文数据只读：传副本，脚本写入不会污染执行上下文
	vm.Set("inputs", copyMap(inputs))
	vm.Set("variables", copyMap(variables))
	vm.Set("deviceId", s.deviceID)

	vm.Set("getInput", func(key string) goja.Value {
		if v, ok := inputs[key]; ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	})
	vm.Set("getVariable", func(key string) goja.Value {
		if v, ok := variables[key]; ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	})

	vm.Set("setResult", func(v goja.Value) {
		s.resultSet = true
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			s.result = nil
			return
		}
		s.result = v.Export()
	})

	vm.Set("log", func(call goja.FunctionCall) goja.Value {
		s.appendLog(call.Arguments)
		return goja.Undefined()
	})

	console := vm.NewObject()
	for _, name := range []string{"log", "info", "warn", "error"} {
		console.Set(name, func(call goja.FunctionCall) goja.Value {
			s.appendLog(call.Arguments)
			return goja.Undefined()
		})
	}
	vm.Set("console", console)

	// device(action, params) 同步调用设备能力，失败抛异常
	vm.Set("device", func(action string, params map[string]any) goja.Value {
		if s.runtime.device == nil {
			panic(vm.NewGoError(fmt.Errorf("no device available in this script")))
		}
		strParams := make(map[string]string, len(params))
		for k, v := range params {
			strParams[k] = fmt.Sprintf("%v", v)
		}
		message, err := s.runtime.device.Invoke(s.ctx, s.deviceID, action, strParams)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(message)
	})

	vm.Set("sleep", func(ms int) {
		if ms <= 0 {
			return
		}
		timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
		case <-timer.C:
		}
	})

	vm.Set("httpGet", func(url string) goja.Value {
		return s.httpCall(http.MethodGet, url, "")
	})
	vm.Set("httpPost", func(url, body string) goja.Value {
		return s.httpCall(http.MethodPost, url, body)
	})

	s.bindCrypto()
}

func (s *session) appendLog(args []goja.Value) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatValue(arg)
	}
	s.logs = append(s.logs, strings.Join(parts, " "))
}

func (s *session) httpCall(method, url, body string) goja.Value {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(s.ctx, method, url, reader)
	if err != nil {
		panic(s.vm.NewGoError(err))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.runtime.httpClient.Do(req)
	if err != nil {
		panic(s.vm.NewGoError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(s.vm.NewGoError(err))
	}

	out := s.vm.NewObject()
	out.Set("status", resp.StatusCode)
	out.Set("text", string(data))
	var parsed any
	if json.Unmarshal(data, &parsed) == nil {
		out.Set("body", s.vm.ToValue(parsed))
	} else {
		out.Set("body", string(data))
	}
	return out
}

func formatValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) {
		return "undefined"
	}
	if goja.IsNull(val) {
		return "null"
	}
	switch v := val.Export().(type) {
	case string:
		return v
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
