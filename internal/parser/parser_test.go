package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidflow/orchestrator/pkg/types"
)

const sampleJSON = `{
  "id": "wf-login",
  "name": "登录流程",
  "stepDelay": 500,
  "inputs": [
    {"key": "username", "type": "text", "required": true},
    {"key": "retries", "type": "number", "default": 3}
  ],
  "steps": [
    {"id": "open", "type": "action", "action": "open_app", "params": {"package": "com.example.app"}},
    {
      "id": "check",
      "type": "condition",
      "condition": "{{logged_in}}",
      "then": [{"id": "done", "type": "wait", "duration": "100"}],
      "else": [
        {"id": "type-user", "type": "action", "action": "input_text",
         "params": {"text": "{{username}}"}, "delayAfter": 1200,
         "onError": {"strategy": "retry", "retries": 2}}
      ]
    }
  ],
  "outputs": ["logged_in"]
}`

const sampleYAML = `
id: wf-scroll
name: scroll feed
steps:
  - id: loop1
    type: loop
    count: "{{rounds}}"
    variable: n
    body:
      - id: s1
        type: action
        action: swipe_up
`

func TestParseJSONWorkflow(t *testing.T) {
	wf, err := Parse([]byte(sampleJSON), "json")
	require.NoError(t, err)

	assert.Equal(t, "wf-login", wf.ID)
	assert.EqualValues(t, 500, wf.StepDelay)
	require.Len(t, wf.Inputs, 2)
	assert.Equal(t, float64(3), wf.Inputs[1].Default)

	require.Len(t, wf.Steps, 2)
	check := wf.Steps[1]
	assert.Equal(t, types.StepCondition, check.Type)
	require.Len(t, check.Else, 1)
	assert.EqualValues(t, 1200, check.Else[0].DelayAfter)
	require.NotNil(t, check.Else[0].OnError)
	assert.Equal(t, types.ErrorStrategyRetry, check.Else[0].OnError.Strategy)
	assert.Equal(t, 2, check.Else[0].OnError.Retries)
}

func TestParseYAMLWorkflow(t *testing.T) {
	wf, err := Parse([]byte(sampleYAML), "yaml")
	require.NoError(t, err)

	require.Len(t, wf.Steps, 1)
	loop := wf.Steps[0]
	assert.Equal(t, types.StepLoop, loop.Type)
	assert.Equal(t, "{{rounds}}", loop.Count)
	assert.Equal(t, "n", loop.Variable)
	require.Len(t, loop.Body, 1)
	assert.Equal(t, "swipe_up", loop.Body[0].Action)
}

func TestParseAutoDetectsFormat(t *testing.T) {
	wf, err := Parse([]byte(sampleYAML), "")
	require.NoError(t, err)
	assert.Equal(t, "wf-scroll", wf.ID)

	wf, err = Parse([]byte(sampleJSON), "")
	require.NoError(t, err)
	assert.Equal(t, "wf-login", wf.ID)
}

func TestParseRejectsEmptyWorkflow(t *testing.T) {
	_, err := Parse([]byte(`{"id": "empty", "steps": []}`), "json")
	assert.Error(t, err)
}

func TestParseRejectsStepWithoutType(t *testing.T) {
	_, err := Parse([]byte(`{"id": "x", "steps": [{"id": "s1"}]}`), "json")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	wf, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "wf-scroll", wf.ID)

	_, err = ParseFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLintDuplicateIDsWithinScope(t *testing.T) {
	wf := &types.WorkflowDefinition{
		ID: "wf-dup",
		Steps: []types.WorkflowStep{
			{ID: "a", Type: types.StepAction, Action: "home"},
			{ID: "a", Type: types.StepAction, Action: "back"},
			{ID: "b", Type: types.StepLoop, Count: "2", Body: []types.WorkflowStep{
				// 不同作用域允许重名
				{ID: "a", Type: types.StepAction, Action: "home"},
			}},
		},
	}

	warnings := Lint(wf)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `duplicate step id "a"`)
}

func TestLintUnknownStepType(t *testing.T) {
	wf := &types.WorkflowDefinition{
		ID:    "wf-unknown",
		Steps: []types.WorkflowStep{{ID: "s1", Type: "levitate"}},
	}

	warnings := Lint(wf)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "unknown type")
}

func TestLintWalksFallbackBranches(t *testing.T) {
	wf := &types.WorkflowDefinition{
		ID: "wf-fallback",
		Steps: []types.WorkflowStep{
			{
				ID: "s1", Type: types.StepAction, Action: "tap",
				OnError: &types.ErrorPolicy{
					Strategy: types.ErrorStrategyFallback,
					Fallback: []types.WorkflowStep{
						{ID: "f1", Type: "nonsense"},
					},
				},
			},
		},
	}

	warnings := Lint(wf)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "nonsense")
}

func TestLintCleanWorkflow(t *testing.T) {
	wf, err := Parse([]byte(sampleJSON), "json")
	require.NoError(t, err)
	assert.Empty(t, Lint(wf))
}
