package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// 未初始化前使用 Nop，测试与工具代码无需显式初始化
var (
	log         = zap.NewNop()
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Options 日志输出选项
type Options struct {
	Level      string
	File       string // 为空则仅输出 stdout
	MaxSizeMB  int
	MaxBackups int
	MaxDays    int
	Compress   bool
}

// OptionsFromEnv 从环境变量读取日志选项：
// - LOG_LEVEL=debug|info|warn|error（默认 info）
// - LOG_TO_FILE=true 或提供 LOG_FILE/LOG_DIR 之一则启用文件输出
// - LOG_MAX_SIZE_MB=100、LOG_MAX_BACKUPS=7、LOG_MAX_DAYS=14、LOG_COMPRESS=true
func OptionsFromEnv() Options {
	opts := Options{
		Level:      strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		MaxSizeMB:  getenvInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: getenvInt("LOG_MAX_BACKUPS", 7),
		MaxDays:    getenvInt("LOG_MAX_DAYS", 14),
		Compress:   getenvBool("LOG_COMPRESS", true),
	}
	logFile := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if logDir := strings.TrimSpace(os.Getenv("LOG_DIR")); logFile == "" && logDir != "" {
		logFile = filepath.Join(logDir, "app.log")
	}
	if logFile == "" && getenvBool("LOG_TO_FILE", false) {
		logFile = filepath.Join(".", "logs", "app.log")
	}
	opts.File = logFile
	return opts
}

// InitLogger 按环境变量初始化全局日志器
func InitLogger() { Init(OptionsFromEnv()) }

// Init 初始化全局日志器（JSON 编码，stdout + 可选滚动文件）
func Init(opts Options) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.MessageKey = "msg"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	atomicLevel.SetLevel(parseLevel(opts.Level))

	enc := zapcore.NewJSONEncoder(encoderConfig)
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), atomicLevel),
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			// 目录不可用时仅输出 stdout
			_, _ = fmt.Fprintf(os.Stderr, "warning: failed to create log directory for %s: %v\n", opts.File, err)
		} else {
			lw := &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxDays,
				Compress:   opts.Compress,
			}
			cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(lw), atomicLevel))
		}
	}

	log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func Info(msg string, fields ...zap.Field)   { log.Info(msg, fields...) }
func Error(msg string, fields ...zap.Field)  { log.Error(msg, fields...) }
func Warn(msg string, fields ...zap.Field)   { log.Warn(msg, fields...) }
func Debug(msg string, fields ...zap.Field)  { log.Debug(msg, fields...) }
func Fatalf(msg string, fields ...zap.Field) { log.Fatal(msg, fields...) }
func Sync()                                  { _ = log.Sync() }

// SetLevel 动态调整日志级别，无效级别忽略
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error":
		atomicLevel.SetLevel(parseLevel(level))
	}
}

func fieldsWithTrace(ctx context.Context, fields ...zap.Field) []zap.Field {
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	return fields
}

func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	log.Info(msg, fieldsWithTrace(ctx, fields...)...)
}
func ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	log.Error(msg, fieldsWithTrace(ctx, fields...)...)
}
func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	log.Warn(msg, fieldsWithTrace(ctx, fields...)...)
}
func DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	log.Debug(msg, fieldsWithTrace(ctx, fields...)...)
}
