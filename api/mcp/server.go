// Package mcp 通过 MCP 协议把编排器暴露给 AI 客户端，
// 工具覆盖工作流执行、单步设备动作和技能查询。
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"droidflow/orchestrator/internal/engine"
	"droidflow/orchestrator/internal/parser"
	"droidflow/orchestrator/internal/skills"
	"droidflow/orchestrator/pkg/logger"
)

const serverVersion = "1.0.0"

// getArgs extracts arguments from request as map[string]any
func getArgs(request mcp.CallToolRequest) map[string]any {
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		return args
	}
	return make(map[string]any)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// Server wraps an MCP server around the workflow engine.
type Server struct {
	mcpServer *server.MCPServer
	ports     engine.Ports
	registry  *skills.Registry
}

// NewServer 注册全部工具并返回可通过 stdio 服务的实例
func NewServer(ports engine.Ports, registry *skills.Registry) *Server {
	s := &Server{
		ports:    ports,
		registry: registry,
	}

	mcpServer := server.NewMCPServer(
		"droidflow-orchestrator",
		serverVersion,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	runTool := mcp.NewTool("run_workflow",
		mcp.WithDescription("Execute a workflow definition on a device and wait for the result"),
		mcp.WithString("workflow",
			mcp.Required(),
			mcp.Description("Workflow definition as a JSON or YAML document"),
		),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("Target device identifier"),
		),
		mcp.WithString("inputs",
			mcp.Description("Workflow inputs as a JSON object"),
		),
	)
	mcpServer.AddTool(runTool, s.handleRunWorkflow)

	actionTool := mcp.NewTool("device_action",
		mcp.WithDescription("Run a single device action such as tap, swipe_up or open_app"),
		mcp.WithString("device_id",
			mcp.Required(),
			mcp.Description("Target device identifier"),
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Action name, e.g. tap, swipe_up, input_text, open_app"),
		),
		mcp.WithString("params",
			mcp.Description("Action parameters as a JSON object of string values"),
		),
	)
	mcpServer.AddTool(actionTool, s.handleDeviceAction)

	validateTool := mcp.NewTool("validate_workflow",
		mcp.WithDescription("Parse a workflow definition and report lint warnings without executing it"),
		mcp.WithString("workflow",
			mcp.Required(),
			mcp.Description("Workflow definition as a JSON or YAML document"),
		),
	)
	mcpServer.AddTool(validateTool, s.handleValidateWorkflow)

	skillsTool := mcp.NewTool("list_skills",
		mcp.WithDescription("List registered reusable skills with their ids and descriptions"),
	)
	mcpServer.AddTool(skillsTool, s.handleListSkills)
}

func (s *Server) handleRunWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	document := stringArg(args, "workflow")
	deviceID := stringArg(args, "device_id")
	if document == "" {
		return mcp.NewToolResultError("workflow parameter is required"), nil
	}
	if deviceID == "" {
		return mcp.NewToolResultError("device_id parameter is required"), nil
	}

	workflow, err := parser.Parse([]byte(document), "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow does not parse: %v", err)), nil
	}

	var inputs map[string]any
	if raw := stringArg(args, "inputs"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("inputs is not a JSON object: %v", err)), nil
		}
	}

	logger.Info("MCP 触发执行 %s @ %s", workflow.ID, deviceID)
	result := engine.New(s.ports).Run(ctx, workflow, inputs, deviceID)

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	if !result.Success {
		return mcp.NewToolResultError(string(payload)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleDeviceAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	deviceID := stringArg(args, "device_id")
	action := stringArg(args, "action")
	if deviceID == "" {
		return mcp.NewToolResultError("device_id parameter is required"), nil
	}
	if action == "" {
		return mcp.NewToolResultError("action parameter is required"), nil
	}
	if s.ports.Device == nil {
		return mcp.NewToolResultError("no device controller configured"), nil
	}

	params := map[string]string{}
	if raw := stringArg(args, "params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("params is not a JSON object of strings: %v", err)), nil
		}
	}

	observation, err := s.ports.Device.Invoke(ctx, deviceID, action, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("action %s failed: %v", action, err)), nil
	}
	if observation == "" {
		observation = fmt.Sprintf("action %s completed", action)
	}
	return mcp.NewToolResultText(observation), nil
}

func (s *Server) handleValidateWorkflow(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document := stringArg(getArgs(request), "workflow")
	if document == "" {
		return mcp.NewToolResultError("workflow parameter is required"), nil
	}

	workflow, err := parser.Parse([]byte(document), "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow does not parse: %v", err)), nil
	}

	warnings := parser.Lint(workflow)
	if len(warnings) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("workflow %s is valid, no warnings", workflow.ID)), nil
	}
	payload, _ := json.MarshalIndent(warnings, "", "  ")
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleListSkills(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.registry == nil {
		return mcp.NewToolResultText("[]"), nil
	}
	summaries := make([]map[string]string, 0)
	for _, skill := range s.registry.List() {
		summaries = append(summaries, map[string]string{
			"id":          skill.ID,
			"name":        skill.Name,
			"description": skill.Description,
		})
	}
	payload, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode skills: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
