package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"droidflow/orchestrator/pkg/ports"
	"droidflow/orchestrator/pkg/types"
)

func TestTruthyTable(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{" True ", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"FALSE", false},
		{"0", false},
		{"no", false},
		{"", false},
		{"   ", false},
		{"anything else", true},
		{"2", true},
		{"null", true},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, Truthy(c.in), "Truthy(%q)", c.in)
	}
}

func TestExactlyTrueIsStricterThanTruthy(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		if isExactlyTrue(s) {
			assert.True(t, Truthy(s), "isExactlyTrue(%q) implies Truthy", s)
		}
	})
	assert.False(t, isExactlyTrue("something"))
	assert.True(t, isExactlyTrue("YES"))
}

func TestConditionBranching(t *testing.T) {
	device := &fakeDevice{}
	runner := newTestRunner(Ports{Device: device})

	wf := &types.WorkflowDefinition{
		ID: "wf-cond",
		Steps: []types.WorkflowStep{
			{
				ID:        "c1",
				Type:      types.StepCondition,
				Condition: "{{flag}}",
				Then:      []types.WorkflowStep{actionStep("t1", "home", nil)},
				Else:      []types.WorkflowStep{actionStep("e1", "back", nil)},
			},
		},
	}

	result := runner.Run(context.Background(), wf, map[string]any{"flag": true}, "dev")
	require.True(t, result.Success)
	assert.Len(t, device.callsFor("home"), 1)
	assert.Empty(t, device.callsFor("back"))

	device2 := &fakeDevice{}
	runner2 := newTestRunner(Ports{Device: device2})
	result = runner2.Run(context.Background(), wf, map[string]any{"flag": "no"}, "dev")
	require.True(t, result.Success)
	assert.Empty(t, device2.callsFor("home"))
	assert.Len(t, device2.callsFor("back"), 1)
}

// ---- 并行 ----

func TestParallelBranchesAllRunAndMergeInOrder(t *testing.T) {
	device := &fakeDevice{}
	script := &fakeScript{seq: []*ports.ScriptResult{{Success: true, Result: "from-script"}}}
	runner := newTestRunner(Ports{Device: device, Script: script})

	wf := &types.WorkflowDefinition{
		ID:      "wf-par",
		Outputs: []string{"winner"},
		Steps: []types.WorkflowStep{
			{
				ID:   "p1",
				Type: types.StepParallel,
				Branches: [][]types.WorkflowStep{
					{{ID: "b1s1", Type: types.StepPython, Script: "a()", SaveTo: "winner"}},
					{actionStep("b2s1", "home", nil)},
				},
			},
		},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	require.True(t, result.Success, "workflow error: %s", result.Error)
	assert.Len(t, device.callsFor("home"), 1)
	assert.Equal(t, "from-script", result.Outputs["winner"])
}

func TestParallelBranchFailureFailsStepAfterAllFinish(t *testing.T) {
	device := &fakeDevice{failOn: "tap", failTimes: -1}
	runner := newTestRunner(Ports{Device: device})

	wf := &types.WorkflowDefinition{
		ID: "wf-par-fail",
		Steps: []types.WorkflowStep{
			{
				ID:   "p1",
				Type: types.StepParallel,
				Branches: [][]types.WorkflowStep{
					{actionStep("b1s1", "tap", map[string]any{"x": "1", "y": "1"})},
					{actionStep("b2s1", "home", nil)},
				},
			},
		},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "parallel branch 0")
	// 其余分支仍然完整执行
	assert.Len(t, device.callsFor("home"), 1)
}

// ---- AI 步骤 ----

func TestScripterRecordsHistoryAndClearsLastError(t *testing.T) {
	script := &fakeScript{seq: []*ports.ScriptResult{
		{Success: false, Error: "element not found"},
		{Success: true, Result: "done"},
	}}
	codegen := &fakeCodegen{code: "doThing()"}
	runner := newTestRunner(Ports{Script: script, Codegen: codegen})

	failing := types.WorkflowStep{ID: "ai1", Type: types.StepScripter, Prompt: "find the login button and press it"}
	failing.OnError = &types.ErrorPolicy{Strategy: types.ErrorStrategySkip}

	wf := &types.WorkflowDefinition{
		ID: "wf-scripter",
		Steps: []types.WorkflowStep{
			failing,
			{ID: "ai2", Type: types.StepScripter, Prompt: "try again", SaveTo: "out"},
		},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	require.True(t, result.Success, "workflow error: %s", result.Error)

	// 第二次生成时能看到第一次的失败
	require.Len(t, codegen.states, 2)
	assert.Nil(t, codegen.states[0].LastError)
	require.NotNil(t, codegen.states[1].LastError)
	assert.Equal(t, "ai1", codegen.states[1].LastError.StepID)
	require.Len(t, codegen.states[1].History, 1)
	assert.False(t, codegen.states[1].History[0].Success)
}

func TestScripterSeesWorkflowDescriptionAsPlan(t *testing.T) {
	script := &fakeScript{}
	codegen := &fakeCodegen{}
	runner := newTestRunner(Ports{Script: script, Codegen: codegen})

	wf := &types.WorkflowDefinition{
		ID:          "wf-plan",
		Description: "log in and archive all unread messages",
		Steps: []types.WorkflowStep{
			{ID: "ai1", Type: types.StepScripter, Prompt: "log in"},
		},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	require.True(t, result.Success, "workflow error: %s", result.Error)
	require.Len(t, codegen.states, 1)
	assert.Equal(t, "log in and archive all unread messages", codegen.states[0].Plan)
}

func TestScripterPromptTruncatedInHistory(t *testing.T) {
	script := &fakeScript{}
	codegen := &fakeCodegen{}
	runner := newTestRunner(Ports{Script: script, Codegen: codegen})

	long := ""
	for i := 0; i < 30; i++ {
		long += "abcdefghij"
	}
	wf := &types.WorkflowDefinition{
		ID: "wf-trunc",
		Steps: []types.WorkflowStep{
			{ID: "ai1", Type: types.StepScripter, Prompt: long},
			{ID: "ai2", Type: types.StepScripter, Prompt: "peek"},
		},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	require.True(t, result.Success)
	require.Len(t, codegen.states, 2)
	history := codegen.states[1].History
	require.Len(t, history, 1)
	assert.Len(t, history[0].Action, 100)
}

func TestPythonStepRequiresExactlyOneSource(t *testing.T) {
	runner := newTestRunner(Ports{Script: &fakeScript{}, Codegen: &fakeCodegen{}})

	both := &types.WorkflowDefinition{
		ID:    "wf-both",
		Steps: []types.WorkflowStep{{ID: "p1", Type: types.StepPython, Script: "x()", AIPrompt: "do x"}},
	}
	result := runner.Run(context.Background(), both, nil, "dev")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "BAD_DEFINITION")

	neither := &types.WorkflowDefinition{
		ID:    "wf-neither",
		Steps: []types.WorkflowStep{{ID: "p1", Type: types.StepPython}},
	}
	result = runner.Run(context.Background(), neither, nil, "dev")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "BAD_DEFINITION")
}

func TestAIStepsConsumeEntitlement(t *testing.T) {
	quota := &fakeEntitlements{remaining: 2}
	runner := newTestRunner(Ports{
		Script:       &fakeScript{},
		Codegen:      &fakeCodegen{},
		Entitlements: quota,
	})

	wf := &types.WorkflowDefinition{
		ID: "wf-quota",
		Steps: []types.WorkflowStep{
			{ID: "ai1", Type: types.StepScripter, Prompt: "one"},
			{ID: "p1", Type: types.StepPython, AIPrompt: "two"},
		},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	require.True(t, result.Success, "workflow error: %s", result.Error)
	assert.Equal(t, 2, quota.consumed)

	// 额度耗尽后 AI 步骤失败
	result = runner.Run(context.Background(), wf, nil, "dev")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "ENTITLEMENT_DENIED")
}

func TestPlainScriptDoesNotConsumeEntitlement(t *testing.T) {
	quota := &fakeEntitlements{remaining: 1}
	runner := newTestRunner(Ports{Script: &fakeScript{}, Entitlements: quota})

	wf := &types.WorkflowDefinition{
		ID:    "wf-noquota",
		Steps: []types.WorkflowStep{{ID: "p1", Type: types.StepPython, Script: "x()"}},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	require.True(t, result.Success)
	assert.Zero(t, quota.consumed)
}

// ---- wait ----

func TestWaitLenientDurationParsing(t *testing.T) {
	var slept []time.Duration
	runner := New(Ports{}, WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	wf := &types.WorkflowDefinition{
		ID: "wf-wait",
		Steps: []types.WorkflowStep{
			{ID: "w1", Type: types.StepWait, Duration: "250"},
			{ID: "w2", Type: types.StepWait, Duration: "not-a-number"},
			{ID: "w3", Type: types.StepWait},
		},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	require.True(t, result.Success)
	require.Len(t, slept, 3)
	assert.Equal(t, 250*time.Millisecond, slept[0])
	assert.Equal(t, time.Second, slept[1])
	assert.Equal(t, time.Second, slept[2])
}

func TestWaitConditionTimesOut(t *testing.T) {
	runner := newTestRunner(Ports{}, WithWaitLimits(500*time.Millisecond, 30*time.Second))

	wf := &types.WorkflowDefinition{
		ID:    "wf-waitcond",
		Steps: []types.WorkflowStep{{ID: "w1", Type: types.StepWait, WaitCondition: "{{never}}"}},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "WAIT_TIMEOUT")
}

func TestWaitConditionIgnoresOtherTruthyValues(t *testing.T) {
	runner := newTestRunner(Ports{}, WithWaitLimits(500*time.Millisecond, 30*time.Second))

	wf := &types.WorkflowDefinition{
		ID:    "wf-waityes",
		Steps: []types.WorkflowStep{{ID: "w1", Type: types.StepWait, WaitCondition: "{{ready}}"}},
	}

	// "yes" 在条件步骤里算真，但等待条件只认 "true"。
	result := runner.Run(context.Background(), wf, map[string]any{"ready": "yes"}, "dev")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "WAIT_TIMEOUT")
}

func TestWaitConditionSatisfiedByVariable(t *testing.T) {
	runner := newTestRunner(Ports{})

	wf := &types.WorkflowDefinition{
		ID:    "wf-waitok",
		Steps: []types.WorkflowStep{{ID: "w1", Type: types.StepWait, WaitCondition: "{{ready}}"}},
	}

	result := runner.Run(context.Background(), wf, map[string]any{"ready": true}, "dev")
	assert.True(t, result.Success)
}

// ---- extract / prompt / skill ----

func TestExtractIsStubThatSavesNull(t *testing.T) {
	runner := newTestRunner(Ports{})
	wf := &types.WorkflowDefinition{
		ID:    "wf-extract",
		Steps: []types.WorkflowStep{{ID: "x1", Type: types.StepExtract, Selector: "title", SaveTo: "title"}},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	assert.True(t, result.Success)
}

type fakePrompt struct {
	prompts []string
	result  any
}

func (f *fakePrompt) Run(_ context.Context, prompt, _ string) (any, error) {
	f.prompts = append(f.prompts, prompt)
	return f.result, nil
}

func TestPromptStepDegradesWithoutRunner(t *testing.T) {
	runner := newTestRunner(Ports{})
	wf := &types.WorkflowDefinition{
		ID:    "wf-prompt",
		Steps: []types.WorkflowStep{{ID: "p1", Type: types.StepPrompt, Prompt: "open settings"}},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	assert.True(t, result.Success)
}

func TestPromptStepUsesRunnerAndSavesResult(t *testing.T) {
	prompt := &fakePrompt{result: "navigated"}
	runner := newTestRunner(Ports{Prompt: prompt})
	wf := &types.WorkflowDefinition{
		ID:      "wf-prompt2",
		Outputs: []string{"nav"},
		Steps: []types.WorkflowStep{
			{ID: "p1", Type: types.StepPrompt, Prompt: "open {{target}}", SaveTo: "nav"},
		},
	}

	result := runner.Run(context.Background(), wf, map[string]any{"target": "settings"}, "dev")
	require.True(t, result.Success)
	require.Len(t, prompt.prompts, 1)
	assert.Equal(t, "open settings", prompt.prompts[0])
	assert.Equal(t, "navigated", result.Outputs["nav"])
}

type fakeSkills struct {
	calls []string
	err   error
}

func (f *fakeSkills) Run(_ context.Context, skillID, _ string, _ map[string]any) (any, error) {
	f.calls = append(f.calls, skillID)
	if f.err != nil {
		return nil, f.err
	}
	return "skill-ok", nil
}

func TestSkillStepDelegatesToRegistry(t *testing.T) {
	skills := &fakeSkills{}
	runner := newTestRunner(Ports{Skills: skills})
	wf := &types.WorkflowDefinition{
		ID:    "wf-skill",
		Steps: []types.WorkflowStep{{ID: "s1", Type: types.StepSkill, SkillID: "login-flow"}},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	require.True(t, result.Success)
	assert.Equal(t, []string{"login-flow"}, skills.calls)
}

func TestSkillStepFailsWhenRunnerErrors(t *testing.T) {
	skills := &fakeSkills{err: errors.New("no such skill")}
	runner := newTestRunner(Ports{Skills: skills})
	wf := &types.WorkflowDefinition{
		ID:    "wf-skill-err",
		Steps: []types.WorkflowStep{{ID: "s1", Type: types.StepSkill, SkillID: "ghost"}},
	}

	result := runner.Run(context.Background(), wf, nil, "dev")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "PORT_ERROR")
}
