package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel 日志级别
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// sink 日志输出目标，同一个根记录器派生出的子记录器共享它
type sink struct {
	mu      sync.RWMutex
	level   LogLevel
	enabled bool
	logger  *log.Logger
	file    *os.File
}

// Logger 日志记录器
type Logger struct {
	sink      *sink
	component string
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger 获取默认日志记录器
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger(LogLevelInfo, "")
	})
	return defaultLogger
}

// SetDefault 替换默认日志记录器，应在启动时调用一次
func SetDefault(l *Logger) {
	once.Do(func() {})
	defaultLogger = l
}

// NewLogger 创建新的日志记录器
// filename不为空时同时写入标准输出和文件
func NewLogger(level LogLevel, filename string) *Logger {
	s := &sink{
		level:   level,
		enabled: true,
	}

	var writer io.Writer = os.Stdout

	if filename != "" {
		file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			fmt.Printf("无法打开日志文件 %s: %v\n", filename, err)
		} else {
			s.file = file
			writer = io.MultiWriter(os.Stdout, file)
		}
	}

	s.logger = log.New(writer, "", 0)
	return &Logger{sink: s}
}

// NewWriterLogger 创建写入指定io.Writer的日志记录器
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	return &Logger{sink: &sink{
		level:   level,
		enabled: true,
		logger:  log.New(w, "", 0),
	}}
}

// WithComponent 返回带组件名前缀的子记录器
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{sink: l.sink, component: name}
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Level 返回当前日志级别
func (l *Logger) Level() LogLevel {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	return l.sink.level
}

// SetEnabled 设置是否启用日志
func (l *Logger) SetEnabled(enabled bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.enabled = enabled
}

// SetOutput 替换输出目标
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.logger.SetOutput(w)
}

// Close 关闭日志记录器
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file != nil {
		err := l.sink.file.Close()
		l.sink.file = nil
		return err
	}
	return nil
}

// log 记录日志
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()

	if !l.sink.enabled || level < l.sink.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(timestamp)
	b.WriteString("] [")
	b.WriteString(level.String())
	b.WriteString("] ")
	if l.component != "" {
		b.WriteString("[")
		b.WriteString(l.component)
		b.WriteString("] ")
	}
	b.WriteString(message)

	l.sink.logger.Println(b.String())
}

// Debug 记录调试日志
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LogLevelDebug, format, args...)
}

// Info 记录信息日志
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LogLevelInfo, format, args...)
}

// Warn 记录警告日志
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LogLevelWarn, format, args...)
}

// Error 记录错误日志
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LogLevelError, format, args...)
}

// Fatal 记录致命错误日志并退出程序
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(LogLevelFatal, format, args...)
	os.Exit(1)
}

// 全局日志函数
func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// ParseLogLevel 解析日志级别字符串，未知值按info处理
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "fatal":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}
