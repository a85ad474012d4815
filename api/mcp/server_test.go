package mcp

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidflow/orchestrator/internal/engine"
	"droidflow/orchestrator/internal/skills"
	"droidflow/orchestrator/pkg/types"
)

type fakeDevice struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeDevice) Invoke(_ context.Context, _, action string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, action)
	return "did " + action, nil
}

func newTestServer(t *testing.T) (*Server, *fakeDevice) {
	t.Helper()
	device := &fakeDevice{}
	ports := engine.Ports{Device: device}
	reg := skills.NewRegistry(engine.New(ports))
	reg.MustRegister(&skills.Skill{
		ID:          "unlock",
		Name:        "unlock device",
		Description: "wake and swipe up",
		Steps:       []types.WorkflowStep{{ID: "w", Type: types.StepAction, Action: "wake"}},
	})
	return NewServer(ports, reg), device
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestRunWorkflowTool(t *testing.T) {
	s, device := newTestServer(t)

	result, err := s.handleRunWorkflow(context.Background(), callRequest(map[string]any{
		"workflow":  `{"id":"wf","stepDelay":1,"steps":[{"id":"s1","type":"action","action":"home"}]}`,
		"device_id": "dev-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Contains(t, resultText(t, result), `"success": true`)

	device.mu.Lock()
	defer device.mu.Unlock()
	assert.Equal(t, []string{"home"}, device.calls)
}

func TestRunWorkflowToolRejectsBadDocument(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleRunWorkflow(context.Background(), callRequest(map[string]any{
		"workflow":  `{{{not a workflow`,
		"device_id": "dev-1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRunWorkflowToolRequiresDevice(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleRunWorkflow(context.Background(), callRequest(map[string]any{
		"workflow": `{"id":"wf","steps":[{"id":"s1","type":"action","action":"home"}]}`,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDeviceActionTool(t *testing.T) {
	s, device := newTestServer(t)

	result, err := s.handleDeviceAction(context.Background(), callRequest(map[string]any{
		"device_id": "dev-1",
		"action":    "tap",
		"params":    `{"x":"100","y":"200"}`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "did tap", resultText(t, result))

	device.mu.Lock()
	defer device.mu.Unlock()
	assert.Equal(t, []string{"tap"}, device.calls)
}

func TestDeviceActionToolRejectsBadParams(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleDeviceAction(context.Background(), callRequest(map[string]any{
		"device_id": "dev-1",
		"action":    "tap",
		"params":    `not json`,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestValidateWorkflowTool(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleValidateWorkflow(context.Background(), callRequest(map[string]any{
		"workflow": `{"id":"wf","steps":[{"id":"s1","type":"action","action":"home"},{"id":"s1","type":"levitate"}]}`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "duplicate")
	assert.Contains(t, text, "levitate")
}

func TestValidateWorkflowToolCleanDefinition(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleValidateWorkflow(context.Background(), callRequest(map[string]any{
		"workflow": `{"id":"wf","steps":[{"id":"s1","type":"action","action":"home"}]}`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.True(t, strings.Contains(resultText(t, result), "no warnings"))
}

func TestListSkillsTool(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleListSkills(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, `"id": "unlock"`)
	assert.Contains(t, text, "wake and swipe up")
}
