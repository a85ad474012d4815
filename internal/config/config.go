// Package config 加载编排器的进程配置。优先级：命令行 flag >
// 环境变量 > 配置文件 > 默认值，flag 合并在 cmd 层完成。
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete orchestrator configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	AI      AIConfig      `yaml:"ai"`
	License LicenseConfig `yaml:"license"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	// SkillsDir 技能定义目录，每个文件注册为一条技能
	SkillsDir string `yaml:"skills_dir" env:"DF_SKILLS_DIR"`
}

// DeviceConfig holds device transport configuration.
type DeviceConfig struct {
	PortalURL string `yaml:"portal_url" env:"DF_PORTAL_URL"`
	ADBPath   string `yaml:"adb_path" env:"DF_ADB_PATH"`
}

// AIConfig holds code-generation model configuration.
type AIConfig struct {
	APIKey      string  `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL     string  `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model       string  `yaml:"model" env:"DF_AI_MODEL"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LicenseConfig holds entitlement service configuration.
type LicenseConfig struct {
	URL string `yaml:"url" env:"DF_LICENSE_URL"`
	Key string `yaml:"key" env:"DROIDFLOW_LICENSE_KEY"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `yaml:"address" env:"DF_SERVER_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	EnableCORS   bool          `yaml:"enable_cors"`
	MaxParallel  int           `yaml:"max_parallel"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"DF_LOG_LEVEL"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ADBPath: "adb",
		},
		AI: AIConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 2048,
		},
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
			MaxParallel:  4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load 读取配置：默认值、可选的 YAML 文件、环境变量依次覆盖
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 用环境变量覆盖字符串配置项
func applyEnv(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"DF_PORTAL_URL", &cfg.Device.PortalURL},
		{"DF_ADB_PATH", &cfg.Device.ADBPath},
		{"OPENAI_API_KEY", &cfg.AI.APIKey},
		{"OPENAI_BASE_URL", &cfg.AI.BaseURL},
		{"DF_AI_MODEL", &cfg.AI.Model},
		{"DF_LICENSE_URL", &cfg.License.URL},
		{"DROIDFLOW_LICENSE_KEY", &cfg.License.Key},
		{"DF_SERVER_ADDRESS", &cfg.Server.Address},
		{"DF_LOG_LEVEL", &cfg.Logging.Level},
		{"DF_SKILLS_DIR", &cfg.SkillsDir},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.env); ok && value != "" {
			*o.target = value
		}
	}
}
