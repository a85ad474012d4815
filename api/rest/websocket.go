package rest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"golang.org/x/net/websocket"

	"droidflow/orchestrator/pkg/types"
)

// Hub 维护所有 WebSocket 订阅者并广播执行事件。
// 断开或写失败的连接直接剔除，慢客户端不会阻塞执行。
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]bool)}
}

// Broadcast sends an event to every connected subscriber.
func (h *Hub) Broadcast(event types.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := websocket.Message.Send(conn, string(data)); err != nil {
			h.remove(conn)
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// Callback returns an ExecutionCallback that feeds the hub.
func (h *Hub) Callback() types.ExecutionCallback {
	return &hubCallback{hub: h}
}

func (s *Server) setupWebSocketRoutes() {
	s.app.Get("/api/v1/events/stream", adaptor.HTTPHandler(
		websocket.Handler(func(ws *websocket.Conn) {
			s.hub.add(ws)
			defer s.hub.remove(ws)

			// 只推不收：读循环用来感知客户端断开
			var discard string
			for {
				if err := websocket.Message.Receive(ws, &discard); err != nil {
					return
				}
			}
		}),
	))
}

// hubCallback 把引擎回调翻译成对外事件
type hubCallback struct {
	hub *Hub
}

var _ types.ExecutionCallback = (*hubCallback)(nil)

func (cb *hubCallback) OnRunStart(_ context.Context, wf *types.WorkflowDefinition, deviceID string) {
	cb.hub.Broadcast(types.Event{
		Type:       types.EventRunStart,
		WorkflowID: wf.ID,
		DeviceID:   deviceID,
		Timestamp:  time.Now(),
	})
}

func (cb *hubCallback) OnStepStart(_ context.Context, step *types.WorkflowStep) {
	cb.hub.Broadcast(types.Event{
		Type:      types.EventStepStart,
		StepID:    step.ID,
		StepType:  step.Type,
		StepName:  step.DisplayName(),
		Timestamp: time.Now(),
	})
}

func (cb *hubCallback) OnStepComplete(_ context.Context, step *types.WorkflowStep, duration time.Duration) {
	cb.hub.Broadcast(types.Event{
		Type:       types.EventStepComplete,
		StepID:     step.ID,
		StepType:   step.Type,
		StepName:   step.DisplayName(),
		Success:    true,
		DurationMS: duration.Milliseconds(),
		Timestamp:  time.Now(),
	})
}

func (cb *hubCallback) OnStepFailed(_ context.Context, step *types.WorkflowStep, err error) {
	cb.hub.Broadcast(types.Event{
		Type:      types.EventStepFailed,
		StepID:    step.ID,
		StepType:  step.Type,
		StepName:  step.DisplayName(),
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

func (cb *hubCallback) OnLog(_ context.Context, entry types.WorkflowLog) {
	cb.hub.Broadcast(types.Event{
		Type:      types.EventLog,
		StepID:    entry.StepID,
		Message:   entry.Message,
		Timestamp: entry.Timestamp,
	})
}

func (cb *hubCallback) OnRunComplete(_ context.Context, result *types.WorkflowResult) {
	cb.hub.Broadcast(types.Event{
		Type:       types.EventRunComplete,
		WorkflowID: result.WorkflowID,
		DeviceID:   result.DeviceID,
		Success:    result.Success,
		Error:      result.Error,
		DurationMS: result.DurationMS,
		Timestamp:  time.Now(),
	})
}
