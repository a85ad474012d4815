// Package parser 负责从 JSON/YAML 加载工作流定义并做静态检查。
// 定义格式刻意宽松（经常由 LLM 生成），所以大部分问题只报告为
// 警告，真正的语义错误留给解释器在执行时定位。
package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"droidflow/orchestrator/pkg/types"
)

// Parse decodes a workflow definition from raw bytes. format is "json"
// or "yaml"; anything else tries JSON first and falls back to YAML.
func Parse(data []byte, format string) (*types.WorkflowDefinition, error) {
	var wf types.WorkflowDefinition
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &wf); err != nil {
			return nil, fmt.Errorf("parse workflow json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &wf); err != nil {
			return nil, fmt.Errorf("parse workflow yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &wf); err != nil {
			if yerr := yaml.Unmarshal(data, &wf); yerr != nil {
				return nil, fmt.Errorf("parse workflow: not valid json (%v) nor yaml (%v)", err, yerr)
			}
		}
	}

	if err := validate(&wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ParseFile loads a workflow definition from disk, choosing the format
// by file extension.
func ParseFile(path string) (*types.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}

	format := ""
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = "json"
	case ".yaml", ".yml":
		format = "yaml"
	}
	return Parse(data, format)
}

// validate rejects definitions the interpreter cannot meaningfully run.
// 宽松原则：只有缺了步骤列表或步骤连类型都没有才算错误。
func validate(wf *types.WorkflowDefinition) error {
	if len(wf.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", wf.ID)
	}
	var walk func(steps []types.WorkflowStep) error
	walk = func(steps []types.WorkflowStep) error {
		for i := range steps {
			step := &steps[i]
			if step.Type == "" {
				return fmt.Errorf("step %q has no type", step.ID)
			}
			for _, nested := range nestedLists(step) {
				if err := walk(nested); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(wf.Steps)
}

// Lint reports non-fatal problems: duplicate step ids within a scope,
// unknown step types and unknown action names. The interpreter will
// still run such definitions, so these are advisory only.
func Lint(wf *types.WorkflowDefinition) []string {
	var warnings []string

	known := make(map[string]bool, len(types.KnownStepTypes))
	for _, t := range types.KnownStepTypes {
		known[t] = true
	}

	var walk func(scope string, steps []types.WorkflowStep)
	walk = func(scope string, steps []types.WorkflowStep) {
		seen := make(map[string]bool, len(steps))
		for i := range steps {
			step := &steps[i]
			if step.ID == "" {
				warnings = append(warnings, fmt.Sprintf("%s: step #%d has no id", scope, i))
			} else if seen[step.ID] {
				warnings = append(warnings, fmt.Sprintf("%s: duplicate step id %q", scope, step.ID))
			}
			seen[step.ID] = true

			if !known[step.Type] {
				warnings = append(warnings, fmt.Sprintf("%s: step %q has unknown type %q", scope, step.ID, step.Type))
			}
			for j, nested := range nestedLists(step) {
				walk(fmt.Sprintf("%s/%s[%d]", scope, step.ID, j), nested)
			}
		}
	}
	walk("steps", wf.Steps)
	return warnings
}

// nestedLists 返回步骤的所有嵌套步骤列表（then/else/body/branches/fallback）
func nestedLists(step *types.WorkflowStep) [][]types.WorkflowStep {
	var lists [][]types.WorkflowStep
	if len(step.Then) > 0 {
		lists = append(lists, step.Then)
	}
	if len(step.Else) > 0 {
		lists = append(lists, step.Else)
	}
	if len(step.Body) > 0 {
		lists = append(lists, step.Body)
	}
	lists = append(lists, step.Branches...)
	if step.OnError != nil && len(step.OnError.Fallback) > 0 {
		lists = append(lists, step.OnError.Fallback)
	}
	return lists
}
