package device

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/ports"
)

// Android 按键码
const (
	keycodeHome       = "3"
	keycodeBack       = "4"
	keycodeEnter      = "66"
	keycodeRecentApps = "187"
	keycodeWake       = "224"
)

const (
	defaultSwipeDuration     = "300"
	defaultLongPressDuration = "2000"
	screenshotRemotePath     = "/sdcard/screenshot.png"
)

// ADBController 通过 adb shell 执行动作的慢速兜底通道。
// 只覆盖 shell 能表达的动作子集；tap_index / tap_element / get_state
// 这类需要 UI 树的动作不在其中。
type ADBController struct {
	adbPath string
}

// NewADBController creates a controller that shells out to the given
// adb binary ("adb" when empty).
func NewADBController(adbPath string) *ADBController {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &ADBController{adbPath: adbPath}
}

var _ ports.DeviceController = (*ADBController)(nil)

// Invoke runs the action as one or more adb commands.
func (a *ADBController) Invoke(ctx context.Context, deviceID, action string, params map[string]string) (string, error) {
	commands, err := BuildADBCommands(action, params)
	if err != nil {
		return "", err
	}

	var lastOut string
	for _, argv := range commands {
		full := append([]string{"-s", deviceID}, argv...)
		logger.Debug("adb %s", strings.Join(full, " "))

		out, err := exec.CommandContext(ctx, a.adbPath, full...).CombinedOutput()
		if err != nil {
			return "", fmt.Errorf("adb %s failed: %w: %s", action, err, strings.TrimSpace(string(out)))
		}
		lastOut = strings.TrimSpace(string(out))
	}

	if lastOut != "" {
		return lastOut, nil
	}
	return action + " via adb", nil
}

// BuildADBCommands maps an action to the adb argv list(s) that implement
// it. Exposed for tests; the returned commands do not include the
// leading "-s <device>".
func BuildADBCommands(action string, params map[string]string) ([][]string, error) {
	switch action {
	case "tap", "double_tap":
		x, y := params["x"], params["y"]
		if x == "" || y == "" {
			return nil, fmt.Errorf("%s needs x and y", action)
		}
		tap := []string{"shell", "input", "tap", x, y}
		if action == "double_tap" {
			return [][]string{tap, tap}, nil
		}
		return [][]string{tap}, nil

	case "swipe":
		x1, y1, x2, y2 := swipeCoords(params)
		if x1 == "" {
			return nil, fmt.Errorf("swipe needs x1,y1,x2,y2 or start_x,start_y,end_x,end_y")
		}
		duration := params["duration"]
		if duration == "" {
			duration = defaultSwipeDuration
		}
		return [][]string{{"shell", "input", "swipe", x1, y1, x2, y2, duration}}, nil

	case "swipe_up":
		return [][]string{{"shell", "input", "swipe", "500", "1500", "500", "500", defaultSwipeDuration}}, nil
	case "swipe_down":
		return [][]string{{"shell", "input", "swipe", "500", "500", "500", "1500", defaultSwipeDuration}}, nil
	case "swipe_left":
		return [][]string{{"shell", "input", "swipe", "900", "1000", "100", "1000", defaultSwipeDuration}}, nil
	case "swipe_right":
		return [][]string{{"shell", "input", "swipe", "100", "1000", "900", "1000", defaultSwipeDuration}}, nil

	case "long_press":
		x, y := params["x"], params["y"]
		if x == "" || y == "" {
			return nil, fmt.Errorf("long_press needs x and y")
		}
		duration := params["duration"]
		if duration == "" {
			duration = defaultLongPressDuration
		}
		// 原地 swipe 模拟长按
		return [][]string{{"shell", "input", "swipe", x, y, x, y, duration}}, nil

	case "input_text":
		text := params["text"]
		if text == "" {
			return nil, fmt.Errorf("input_text needs text")
		}
		return [][]string{{"shell", "input", "text", EscapeShellText(text)}}, nil

	case "press_key":
		keycode := params["keycode"]
		if keycode == "" {
			return nil, fmt.Errorf("press_key needs keycode")
		}
		return [][]string{{"shell", "input", "keyevent", keycode}}, nil

	case "back", "dismiss_popup":
		return [][]string{{"shell", "input", "keyevent", keycodeBack}}, nil
	case "home":
		return [][]string{{"shell", "input", "keyevent", keycodeHome}}, nil
	case "enter":
		return [][]string{{"shell", "input", "keyevent", keycodeEnter}}, nil
	case "recent_apps":
		return [][]string{{"shell", "input", "keyevent", keycodeRecentApps}}, nil
	case "wake":
		return [][]string{{"shell", "input", "keyevent", keycodeWake}}, nil

	case "open_app":
		pkg := params["package"]
		if pkg == "" {
			return nil, fmt.Errorf("open_app needs package")
		}
		return [][]string{{"shell", "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1"}}, nil

	case "screenshot":
		local := params["path"]
		if local == "" {
			local = "screenshot.png"
		}
		return [][]string{
			{"shell", "screencap", "-p", screenshotRemotePath},
			{"pull", screenshotRemotePath, local},
		}, nil

	default:
		return nil, fmt.Errorf("action %q has no adb fallback", action)
	}
}

func swipeCoords(params map[string]string) (string, string, string, string) {
	if params["x1"] != "" {
		return params["x1"], params["y1"], params["x2"], params["y2"]
	}
	return params["start_x"], params["start_y"], params["end_x"], params["end_y"]
}

// EscapeShellText prepares text for `input text`: spaces become %s and
// shell metacharacters get backslash-escaped.
func EscapeShellText(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case ' ':
			b.WriteString("%s")
		case '&', '|', '<', '>', ';', '(', ')', '\'', '"', '`', '\\', '$':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
