package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"droidflow/orchestrator/api/rest"
	"droidflow/orchestrator/pkg/logger"
)

var (
	serveAddr        string
	serveCORS        bool
	serveMaxParallel int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP API 服务（含 WebSocket 事件流）",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		p, err := buildPorts(ctx)
		if err != nil {
			return err
		}

		config := rest.DefaultConfig()
		if loadedConfig != nil {
			config.Address = loadedConfig.Server.Address
			config.ReadTimeout = loadedConfig.Server.ReadTimeout
			config.WriteTimeout = loadedConfig.Server.WriteTimeout
			config.EnableCORS = loadedConfig.Server.EnableCORS
			config.MaxParallel = loadedConfig.Server.MaxParallel
		}
		if cmd.Flags().Changed("addr") {
			config.Address = serveAddr
		}
		if cmd.Flags().Changed("cors") {
			config.EnableCORS = serveCORS
		}
		if serveMaxParallel > 0 {
			config.MaxParallel = serveMaxParallel
		}

		server := rest.NewServer(p, skillRegistry(p), config)

		errCh := make(chan error, 1)
		go func() {
			fmt.Printf(Banner, Version)
			logger.Info("HTTP 服务监听 %s", config.Address)
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("正在关闭服务...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP 监听地址")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", true, "启用 CORS")
	serveCmd.Flags().IntVar(&serveMaxParallel, "max-parallel", 0, "批量接口的默认并发数")
	rootCmd.AddCommand(serveCmd)
}
