// Package logger 提供进程级的简单日志工具。引擎把步骤日志写进
// 执行结果，这里只负责镜像到终端，所以刻意保持轻量。
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level 日志级别
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu sync.Mutex
	// 当前日志级别，默认为 Info
	currentLevel = LevelInfo
	// 输出目标，测试时可替换
	sink io.Writer = os.Stderr
)

// SetLevel 设置日志级别
func SetLevel(level Level) {
	mu.Lock()
	currentLevel = level
	mu.Unlock()
}

// SetLevelFromString 从字符串设置日志级别，无法识别时退回 Info
func SetLevelFromString(level string) {
	switch strings.ToLower(level) {
	case "debug":
		SetLevel(LevelDebug)
	case "info":
		SetLevel(LevelInfo)
	case "warn", "warning":
		SetLevel(LevelWarn)
	case "error":
		SetLevel(LevelError)
	default:
		SetLevel(LevelInfo)
	}
}

// SetOutput 重定向日志输出，返回之前的目标
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	previous := sink
	sink = w
	return previous
}

// EnableDebug 启用调试日志
func EnableDebug() {
	SetLevel(LevelDebug)
}

// DisableDebug 禁用调试日志
func DisableDebug() {
	SetLevel(LevelInfo)
}

// IsDebugEnabled 检查是否启用调试日志
func IsDebugEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return currentLevel <= LevelDebug
}

func emit(level Level, tag, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if currentLevel > level {
		return
	}
	fmt.Fprintf(sink, "%s %s "+format+"\n",
		append([]interface{}{time.Now().Format("15:04:05.000"), tag}, args...)...)
}

// Debug 输出调试日志
func Debug(format string, args ...interface{}) {
	emit(LevelDebug, "[DEBUG]", format, args...)
}

// Info 输出信息日志
func Info(format string, args ...interface{}) {
	emit(LevelInfo, "[INFO]", format, args...)
}

// Warn 输出警告日志
func Warn(format string, args ...interface{}) {
	emit(LevelWarn, "[WARN]", format, args...)
}

// Error 输出错误日志
func Error(format string, args ...interface{}) {
	emit(LevelError, "[ERROR]", format, args...)
}
