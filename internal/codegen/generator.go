// Package codegen 用 LLM 把自然语言指令翻译成可执行的设备脚本。
// 共享状态（输入、变量、历史、上一次失败）随提示词一起送入模型，
// 让生成的代码能接着前文继续，失败后能自我修正。
package codegen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/ports"
)

// Config LLM 接入配置，BaseURL 兼容任何 OpenAI 风格的推理端点
type Config struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Generator implements ports.CodeGenerator on top of a chat model.
type Generator struct {
	chatModel model.BaseChatModel
}

// New creates a Generator from config.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}

	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}
	return &Generator{chatModel: chatModel}, nil
}

// NewWithModel wraps an existing chat model, mainly for tests.
func NewWithModel(m model.BaseChatModel) *Generator {
	return &Generator{chatModel: m}
}

var _ ports.CodeGenerator = (*Generator)(nil)

// Generate produces runnable script code for the given instruction.
func (g *Generator) Generate(ctx context.Context, prompt string, state *ports.SharedState) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(BuildUserPrompt(prompt, state)),
	}

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		logger.Debug("代码生成消耗 token: prompt=%d completion=%d",
			resp.ResponseMeta.Usage.PromptTokens, resp.ResponseMeta.Usage.CompletionTokens)
	}

	code := StripCodeFences(resp.Content)
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("chat model returned empty code")
	}
	return code, nil
}

// BuildUserPrompt renders the instruction plus the shared state snapshot.
func BuildUserPrompt(prompt string, state *ports.SharedState) string {
	var b strings.Builder
	b.WriteString("Instruction: ")
	b.WriteString(prompt)
	b.WriteString("\n")

	if state == nil {
		return b.String()
	}

	b.WriteString("\nDevice: " + state.DeviceID + "\n")
	if len(state.Inputs) > 0 {
		writeJSONSection(&b, "Workflow inputs", state.Inputs)
	}
	if len(state.Variables) > 0 {
		writeJSONSection(&b, "Current variables", state.Variables)
	}
	if state.Plan != "" {
		b.WriteString("\nOverall plan:\n" + state.Plan + "\n")
	}

	if len(state.History) > 0 {
		b.WriteString("\nPrevious AI steps:\n")
		for _, record := range state.History {
			status := "ok"
			if !record.Success {
				status = "FAILED"
			}
			fmt.Fprintf(&b, "- [%s] %s (%dms)\n", status, record.Action, record.DurationMS)
		}
	}

	if state.LastError != nil {
		fmt.Fprintf(&b, "\nThe previous attempt (step %s) failed with:\n%s\n",
			state.LastError.StepID, state.LastError.ErrorMessage)
		if state.LastError.SuggestedFix != "" {
			b.WriteString("Suggested fix: " + state.LastError.SuggestedFix + "\n")
		}
		b.WriteString("Write corrected code that avoids this failure.\n")
	}
	return b.String()
}

func writeJSONSection(b *strings.Builder, title string, data map[string]any) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return
	}
	b.WriteString("\n" + title + ":\n" + string(encoded) + "\n")
}

// StripCodeFences removes a surrounding markdown code fence if present.
// 模型经常无视指令把代码包进 ```js 围栏里。
func StripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// 去掉开头的 ```lang 行
	lines = lines[1:]
	// 去掉结尾的 ``` 行
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
