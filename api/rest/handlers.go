package rest

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"droidflow/orchestrator/internal/engine"
	"droidflow/orchestrator/internal/fanout"
	"droidflow/orchestrator/internal/parser"
	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/types"
)

// newRunner 为一次执行构建引擎，把事件接到 WebSocket 广播
func (s *Server) newRunner() *engine.Runner {
	return engine.New(s.ports, engine.WithCallback(s.hub.Callback()))
}

// handleExecute 受理一次执行并异步运行
func (s *Server) handleExecute(c *fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if req.DeviceID == "" {
		return badRequest(c, "deviceId is required")
	}
	if len(req.Workflow.Steps) == 0 {
		return badRequest(c, "workflow has no steps")
	}

	record := &ExecutionRecord{
		ExecutionID: uuid.NewString(),
		WorkflowID:  req.Workflow.ID,
		DeviceID:    req.DeviceID,
		Status:      "running",
		StartedAt:   time.Now(),
	}
	s.executionsMu.Lock()
	s.executions[record.ExecutionID] = record
	s.executionsMu.Unlock()

	go func() {
		result := s.newRunner().Run(context.Background(), &req.Workflow, req.Inputs, req.DeviceID)

		s.executionsMu.Lock()
		record.Result = result
		now := time.Now()
		record.FinishedAt = &now
		if result.Success {
			record.Status = "completed"
		} else {
			record.Status = "failed"
		}
		s.executionsMu.Unlock()
	}()

	// 不能再读 record 的可变字段，goroutine 可能已经在改了
	return c.Status(fiber.StatusAccepted).JSON(ExecuteResponse{
		ExecutionID: record.ExecutionID,
		Status:      "running",
	})
}

func (s *Server) handleGetExecution(c *fiber.Ctx) error {
	// 序列化前先在锁内拷贝，避免和执行 goroutine 的写入竞争
	s.executionsMu.RLock()
	record, ok := s.executions[c.Params("id")]
	var snapshot ExecutionRecord
	if ok {
		snapshot = *record
	}
	s.executionsMu.RUnlock()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error: "not_found", Message: "no such execution",
		})
	}
	return c.JSON(snapshot)
}

func (s *Server) handleListExecutions(c *fiber.Ctx) error {
	s.executionsMu.RLock()
	records := make([]ExecutionRecord, 0, len(s.executions))
	for _, r := range s.executions {
		records = append(records, *r)
	}
	s.executionsMu.RUnlock()
	return c.JSON(records)
}

// handleBatch 批量执行，同步等待整批完成后返回报告
func (s *Server) handleBatch(c *fiber.Ctx) error {
	var req BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if len(req.Devices) == 0 {
		return badRequest(c, "devices is required")
	}
	if len(req.Workflow.Steps) == 0 {
		return badRequest(c, "workflow has no steps")
	}

	maxParallel := req.MaxParallel
	if maxParallel <= 0 {
		maxParallel = s.config.MaxParallel
	}

	tasks := make([]types.TaskSpec, len(req.Devices))
	for i, deviceID := range req.Devices {
		tasks[i] = types.TaskSpec{
			TaskID:   uuid.NewString(),
			DeviceID: deviceID,
			Workflow: req.Workflow,
			Inputs:   req.Inputs,
		}
	}

	runner := s.newRunner()
	coordinator := fanout.New(func(ctx context.Context, task *types.TaskSpec) (*types.WorkflowResult, error) {
		return runner.Run(ctx, &task.Workflow, task.Inputs, task.DeviceID), nil
	})

	logger.Info("批量执行 %s：%d 台设备，并发 %d", req.Workflow.ID, len(tasks), maxParallel)
	report := coordinator.RunMany(c.Context(), tasks, maxParallel)
	return c.JSON(report)
}

func (s *Server) handleValidate(c *fiber.Ctx) error {
	var req ValidateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if len(req.Workflow.Steps) == 0 {
		return c.JSON(ValidateResponse{Valid: false, Warnings: []string{"workflow has no steps"}})
	}
	return c.JSON(ValidateResponse{Valid: true, Warnings: parser.Lint(&req.Workflow)})
}

func (s *Server) handleListSkills(c *fiber.Ctx) error {
	if s.registry == nil {
		return c.JSON([]any{})
	}
	return c.JSON(s.registry.List())
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "bad_request", Message: message,
	})
}
