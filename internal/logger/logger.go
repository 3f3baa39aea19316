package logger

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level 日志级别
type Level = zapcore.Level

const (
	DEBUG = zapcore.DebugLevel
	INFO  = zapcore.InfoLevel
	WARN  = zapcore.WarnLevel
	ERROR = zapcore.ErrorLevel
)

var (
	rootMu sync.RWMutex
	root   = newRoot(INFO, "console")
	level  = zap.NewAtomicLevelAt(INFO)

	// rootGen 每次替换 root 时递增，模块日志据此重建缓存
	rootGen atomic.Uint64
)

// Logger 模块日志记录器
// 包级变量在 init 阶段创建，真正的输出目标在调用时才解析，因此 Setup 之后立即生效
type Logger struct {
	module string
	cached atomic.Pointer[namedSugar]
}

// namedSugar 某一代 root 上的模块日志
type namedSugar struct {
	gen   uint64
	sugar *zap.SugaredLogger
}

// New 创建新的日志记录器
func New(module string) *Logger {
	return &Logger{module: module}
}

// Setup 根据级别和格式初始化进程日志
// format: console / json
func Setup(levelName, format string) error {
	lvl, err := ParseLevel(levelName)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)

	rootMu.Lock()
	root = newRoot(lvl, format)
	rootGen.Add(1)
	rootMu.Unlock()
	return nil
}

// SetForTest 使用给定的 core 替换输出，返回恢复函数
func SetForTest(core zapcore.Core) func() {
	rootMu.Lock()
	prev := root
	root = zap.New(core)
	rootGen.Add(1)
	rootMu.Unlock()
	return func() {
		rootMu.Lock()
		root = prev
		rootGen.Add(1)
		rootMu.Unlock()
	}
}

// ParseLevel 解析日志级别字符串，空串视为 info
func ParseLevel(name string) (Level, error) {
	if strings.TrimSpace(name) == "" {
		return INFO, nil
	}
	return zapcore.ParseLevel(strings.ToLower(name))
}

// Sync 刷新缓冲日志
func Sync() {
	rootMu.RLock()
	defer rootMu.RUnlock()
	_ = root.Sync()
}

func newRoot(lvl Level, format string) *zap.Logger {
	level.SetLevel(lvl)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

func (l *Logger) sugar() *zap.SugaredLogger {
	if c := l.cached.Load(); c != nil && c.gen == rootGen.Load() {
		return c.sugar
	}
	rootMu.RLock()
	c := &namedSugar{gen: rootGen.Load(), sugar: root.Named(l.module).Sugar()}
	rootMu.RUnlock()
	l.cached.Store(c)
	return c.sugar
}

// Debug 调试日志
func (l *Logger) Debug(format string, args ...any) {
	l.sugar().Debugf(format, args...)
}

// Info 信息日志
func (l *Logger) Info(format string, args ...any) {
	l.sugar().Infof(format, args...)
}

// Warn 警告日志
func (l *Logger) Warn(format string, args ...any) {
	l.sugar().Warnf(format, args...)
}

// Error 错误日志
func (l *Logger) Error(format string, args ...any) {
	l.sugar().Errorf(format, args...)
}
