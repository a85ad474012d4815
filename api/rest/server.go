// Package rest 提供编排器的 HTTP API：发起执行、批量下发、
// 定义校验、技能列表，以及通过 WebSocket 推送执行事件。
package rest

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"droidflow/orchestrator/internal/engine"
	"droidflow/orchestrator/internal/skills"
	"droidflow/orchestrator/pkg/logger"
)

// Config REST 服务配置
type Config struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	EnableCORS   bool          `yaml:"enable_cors"`

	// MaxParallel 批量执行的默认并发上限
	MaxParallel int `yaml:"max_parallel"`
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		EnableCORS:   true,
		MaxParallel:  4,
	}
}

// Server REST API 服务
type Server struct {
	app    *fiber.App
	config *Config

	ports    engine.Ports
	registry *skills.Registry
	hub      *Hub

	executions   map[string]*ExecutionRecord
	executionsMu sync.RWMutex
}

// NewServer creates the API server around a set of engine ports. The
// skill registry may be nil when no skills are configured.
func NewServer(ports engine.Ports, registry *skills.Registry, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		ErrorHandler: errorHandler,
		AppName:      "droidflow orchestrator",
	})

	s := &Server{
		app:        app,
		config:     config,
		ports:      ports,
		registry:   registry,
		hub:        NewHub(),
		executions: make(map[string]*ExecutionRecord),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(fiberrecover.New(fiberrecover.Config{EnableStackTrace: true}))
	s.app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	if s.config.EnableCORS {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept",
		}))
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := s.app.Group("/api/v1")
	v1.Post("/executions", s.handleExecute)
	v1.Get("/executions", s.handleListExecutions)
	v1.Get("/executions/:id", s.handleGetExecution)
	v1.Post("/batch", s.handleBatch)
	v1.Post("/workflows/validate", s.handleValidate)
	v1.Get("/skills", s.handleListSkills)

	s.setupWebSocketRoutes()
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	logger.Info("REST API 监听 %s", s.config.Address)
	return s.app.Listen(s.config.Address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: "internal", Message: err.Error()})
}
