// Package skills 维护可复用的子工作流（技能）。skill 步骤通过
// 注册表按 id 调起一段预置的步骤序列，结果回填到父工作流。
package skills

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"droidflow/orchestrator/internal/engine"
	"droidflow/orchestrator/pkg/ports"
	"droidflow/orchestrator/pkg/types"
)

// Skill 一个命名的可复用步骤序列
type Skill struct {
	ID          string               `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []types.WorkflowStep `json:"steps" yaml:"steps"`
	Outputs     []string             `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// Registry 技能注册表，并发安全
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*Skill
	runner *engine.Runner
}

// NewRegistry creates an empty registry. runner executes skill bodies;
// it is usually a dedicated Runner without a Skills port, so skills
// cannot recursively invoke each other.
func NewRegistry(runner *engine.Runner) *Registry {
	return &Registry{
		skills: make(map[string]*Skill),
		runner: runner,
	}
}

var _ ports.SkillRunner = (*Registry)(nil)

// Register adds a skill, replacing any previous one with the same id.
func (r *Registry) Register(skill *Skill) error {
	if skill.ID == "" {
		return fmt.Errorf("skill has no id")
	}
	if len(skill.Steps) == 0 {
		return fmt.Errorf("skill %s has no steps", skill.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[skill.ID] = skill
	return nil
}

// MustRegister 注册失败直接 panic，用于程序启动期的静态注册
func (r *Registry) MustRegister(skill *Skill) {
	if err := r.Register(skill); err != nil {
		panic(err)
	}
}

// Get returns a skill by id.
func (r *Registry) Get(id string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	skill, ok := r.skills[id]
	return skill, ok
}

// List returns all skills sorted by id.
func (r *Registry) List() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Skill, 0, len(r.skills))
	for _, skill := range r.skills {
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Run executes a skill as a nested workflow run. The parent's inputs
// become the skill's inputs; the skill's declared outputs come back as
// the step result.
func (r *Registry) Run(ctx context.Context, skillID, deviceID string, inputs map[string]any) (any, error) {
	skill, ok := r.Get(skillID)
	if !ok {
		return nil, fmt.Errorf("skill %q not registered", skillID)
	}

	wf := &types.WorkflowDefinition{
		ID:      "skill:" + skill.ID,
		Name:    skill.Name,
		Steps:   skill.Steps,
		Outputs: skill.Outputs,
	}

	result := r.runner.Run(ctx, wf, inputs, deviceID)
	if !result.Success {
		return nil, fmt.Errorf("skill %s failed: %s", skillID, result.Error)
	}
	if len(result.Outputs) > 0 {
		return result.Outputs, nil
	}
	return "skill " + skillID + " completed", nil
}
