package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"droidflow/orchestrator/internal/codegen"
	"droidflow/orchestrator/internal/config"
	"droidflow/orchestrator/internal/device"
	"droidflow/orchestrator/internal/engine"
	"droidflow/orchestrator/internal/entitlement"
	"droidflow/orchestrator/internal/parser"
	"droidflow/orchestrator/internal/script"
	"droidflow/orchestrator/internal/skills"
	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/ports"
)

const (
	// Version 是当前版本号
	Version = "0.1.0"
	// Banner 是启动时显示的横幅
	Banner = `
  ┌─┐ droidflow orchestrator %s
  │▒│ device workflow engine
  └─┘
`
)

var (
	// 全局配置
	cfgFile    string
	logLevel   string
	portalURL  string
	adbPath    string
	openaiKey  string
	openaiBase string
	aiModel    string
	licenseURL string
	licenseKey string
	skillsDir  string

	// loadedConfig 是 PersistentPreRunE 解析出的完整配置
	loadedConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "设备工作流编排引擎",
	Long: `orchestrator 在真实设备上执行声明式工作流：
动作步骤经 Portal 或 adb 下发，脚本步骤在内置 JS 运行时里跑，
AI 步骤由大模型即时生成脚本。支持单机执行、多设备批量和 HTTP/MCP 服务。`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		loadedConfig = cfg
		applyConfig(cmd, cfg)
		logger.SetLevelFromString(logLevel)
		return nil
	},
}

// applyConfig 把配置文件的值填进未被 flag 显式覆盖的全局项
func applyConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Root().PersistentFlags()
	if !flags.Changed("log-level") && cfg.Logging.Level != "" {
		logLevel = cfg.Logging.Level
	}
	if !flags.Changed("portal") {
		portalURL = cfg.Device.PortalURL
	}
	if !flags.Changed("adb") && cfg.Device.ADBPath != "" {
		adbPath = cfg.Device.ADBPath
	}
	if !flags.Changed("openai-key") && cfg.AI.APIKey != "" {
		openaiKey = cfg.AI.APIKey
	}
	if !flags.Changed("openai-base") && cfg.AI.BaseURL != "" {
		openaiBase = cfg.AI.BaseURL
	}
	if !flags.Changed("model") && cfg.AI.Model != "" {
		aiModel = cfg.AI.Model
	}
	if !flags.Changed("license-url") {
		licenseURL = cfg.License.URL
	}
	if !flags.Changed("license-key") && cfg.License.Key != "" {
		licenseKey = cfg.License.Key
	}
	if !flags.Changed("skills") && cfg.SkillsDir != "" {
		skillsDir = cfg.SkillsDir
	}
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "日志级别 (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVar(&portalURL, "portal", "", "设备 Portal 基地址，如 http://127.0.0.1:9008")
	rootCmd.PersistentFlags().StringVar(&adbPath, "adb", "adb", "adb 可执行文件路径")
	rootCmd.PersistentFlags().StringVar(&openaiKey, "openai-key", os.Getenv("OPENAI_API_KEY"), "AI 生成脚本的 API key（默认取 OPENAI_API_KEY）")
	rootCmd.PersistentFlags().StringVar(&openaiBase, "openai-base", os.Getenv("OPENAI_BASE_URL"), "AI 服务基地址")
	rootCmd.PersistentFlags().StringVar(&aiModel, "model", "", "AI 模型名称")
	rootCmd.PersistentFlags().StringVar(&licenseURL, "license-url", "", "授权服务基地址（留空则不限额度）")
	rootCmd.PersistentFlags().StringVar(&licenseKey, "license-key", os.Getenv("DROIDFLOW_LICENSE_KEY"), "授权密钥")
	rootCmd.PersistentFlags().StringVar(&skillsDir, "skills", "", "技能定义目录（每个文件一条技能）")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")
}

// buildPorts 按全局 flags 组装引擎依赖
func buildPorts(ctx context.Context) (engine.Ports, error) {
	var controller ports.DeviceController = device.NewADBController(adbPath)
	if portalURL != "" {
		controller = device.NewController(device.NewPortalClient(portalURL), controller)
	}

	p := engine.Ports{
		Device: controller,
		Script: script.NewRuntime(controller),
	}

	if openaiKey != "" {
		aiCfg := codegen.Config{
			APIKey:  openaiKey,
			BaseURL: openaiBase,
			Model:   aiModel,
		}
		if loadedConfig != nil {
			aiCfg.Temperature = loadedConfig.AI.Temperature
			aiCfg.MaxTokens = loadedConfig.AI.MaxTokens
		}
		gen, err := codegen.New(ctx, aiCfg)
		if err != nil {
			return engine.Ports{}, fmt.Errorf("init code generator: %w", err)
		}
		p.Codegen = gen
	}

	if licenseURL != "" {
		host, _ := os.Hostname()
		p.Entitlements = entitlement.NewLicenseClient(licenseURL, licenseKey, host)
	}

	registry := skills.NewRegistry(engine.New(p))
	if skillsDir != "" {
		if err := loadSkills(registry, skillsDir); err != nil {
			return engine.Ports{}, err
		}
	}
	p.Skills = registry

	return p, nil
}

// loadSkills 把目录下的每个工作流文件注册为一条技能
func loadSkills(registry *skills.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read skills dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		wf, err := parser.ParseFile(path)
		if err != nil {
			logger.Warn("跳过无法解析的技能文件 %s: %v", path, err)
			continue
		}
		if err := registry.Register(&skills.Skill{
			ID:          wf.ID,
			Name:        wf.Name,
			Description: wf.Description,
			Steps:       wf.Steps,
			Outputs:     wf.Outputs,
		}); err != nil {
			return fmt.Errorf("register skill from %s: %w", path, err)
		}
		logger.Info("已加载技能 %s (%s)", wf.ID, path)
	}
	return nil
}

// skillRegistry 取出 buildPorts 塞进去的注册表
func skillRegistry(p engine.Ports) *skills.Registry {
	registry, _ := p.Skills.(*skills.Registry)
	return registry
}
