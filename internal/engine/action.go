package engine

import (
	"context"

	"droidflow/orchestrator/pkg/types"
)

// actionRequirements 每个动作的必需参数。外层切片是"或"关系：
// 任意一组全部齐备即可。空表示无必需参数。
var actionRequirements = map[string][][]string{
	"tap":         {{"x", "y"}, {"text"}},
	"tap_index":   {{"index"}},
	"tap_element": {{"text"}},
	"swipe": {
		{"x1", "y1", "x2", "y2"},
		{"start_x", "start_y", "end_x", "end_y"},
	},
	"swipe_up":      {},
	"swipe_down":    {},
	"swipe_left":    {},
	"swipe_right":   {},
	"input_text":    {{"text"}},
	"press_key":     {{"keycode"}},
	"back":          {},
	"home":          {},
	"enter":         {},
	"open_app":      {{"package"}},
	"screenshot":    {},
	"get_state":     {},
	"long_press":    {{"x", "y"}},
	"double_tap":    {{"x", "y"}},
	"wake":          {},
	"dismiss_popup": {},
	"recent_apps":   {},
}

// KnownActions returns the sorted-ish list of valid action names.
func KnownActions() []string {
	names := make([]string, 0, len(actionRequirements))
	for name := range actionRequirements {
		names = append(names, name)
	}
	return names
}

func validateActionParams(stepID, action string, params map[string]string) error {
	alternatives, ok := actionRequirements[action]
	if !ok {
		return newError(ErrCodeUnknownAction, stepID, "unknown action %q", action)
	}
	if len(alternatives) == 0 {
		return nil
	}
	for _, group := range alternatives {
		satisfied := true
		for _, param := range group {
			if params[param] == "" {
				satisfied = false
				break
			}
		}
		if satisfied {
			return nil
		}
	}
	return newError(ErrCodeMissingParam, stepID,
		"action %q missing required params (need %v)", action, alternatives)
}

func (r *Runner) executeAction(ctx context.Context, ec *ExecutionContext, step *types.WorkflowStep) error {
	if r.ports.Device == nil {
		return newError(ErrCodePortError, step.ID, "no device controller configured")
	}

	params := ec.ResolveParams(step.Params)
	if err := validateActionParams(step.ID, step.Action, params); err != nil {
		return err
	}

	message, err := r.ports.Device.Invoke(ctx, ec.DeviceID, step.Action, params)
	if err != nil {
		return wrapError(ErrCodePortError, step.ID, err, "action "+step.Action+" failed")
	}

	if step.SaveTo != "" {
		ec.Variables[step.SaveTo] = message
	}
	r.log(ctx, ec, types.LogSuccess, step.ID, "动作 %s 完成: %s", step.Action, message)
	return nil
}
