package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LogLevelWarn, &buf)

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warn("warn %d", 3)
	logger.Error("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("低于WARN的日志不应输出: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn 3") {
		t.Errorf("缺少WARN日志: %q", out)
	}
	if !strings.Contains(out, "[ERROR] error 4") {
		t.Errorf("缺少ERROR日志: %q", out)
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(LogLevelDebug, &buf)
	child := root.WithComponent("routing")

	child.Info("路由已添加")
	if !strings.Contains(buf.String(), "[INFO] [routing] 路由已添加") {
		t.Errorf("组件前缀缺失: %q", buf.String())
	}

	// 子记录器共享级别
	root.SetLevel(LogLevelError)
	buf.Reset()
	child.Info("不应输出")
	if buf.Len() != 0 {
		t.Errorf("子记录器应继承级别, 实际输出: %q", buf.String())
	}
}

func TestLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LogLevelDebug, &buf)
	logger.SetEnabled(false)
	logger.Error("x")
	if buf.Len() != 0 {
		t.Errorf("禁用后不应输出日志")
	}
}

func TestParseLogLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"fatal", LogLevelFatal},
		{"bogus", LogLevelInfo},
	}
	for _, tc := range testCases {
		if got := ParseLogLevel(tc.in); got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, 期望 %v", tc.in, got, tc.want)
		}
	}
}
