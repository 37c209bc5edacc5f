package template

import (
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf strings.Builder
	logger := NewLogger(&buf, LogWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown %d", 1)
	logger.Error("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("low-level messages leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 1") || !strings.Contains(out, "[ERROR] shown 2") {
		t.Errorf("expected warn and error lines, got %q", out)
	}
}

func TestLoggerFields(t *testing.T) {
	var buf strings.Builder
	logger := NewLogger(&buf, LogDebug).WithField("template", "x").WithFields(Fields{"n": 3})
	logger.Debug("msg")
	out := buf.String()
	if !strings.Contains(out, "template=x") || !strings.Contains(out, "n=3") {
		t.Errorf("fields missing from %q", out)
	}
}

func TestLoggerDebugMode(t *testing.T) {
	logger := NewLogger(nil, LogInfo)
	if logger.IsDebugMode() {
		t.Error("info logger reports debug mode")
	}
	logger.SetLevel(LogDebug)
	if !logger.IsDebugMode() {
		t.Error("debug logger does not report debug mode")
	}
}

func TestLogLevelString(t *testing.T) {
	for level, want := range map[LogLevel]string{
		LogDebug: "DEBUG", LogInfo: "INFO", LogWarn: "WARN",
		LogError: "ERROR", LogOff: "OFF", LogLevel(99): "UNKNOWN",
	} {
		if got := level.String(); got != want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("debug") != LogDebug || parseLogLevel("off") != LogOff {
		t.Error("parseLogLevel misparses known levels")
	}
	if parseLogLevel("unknown") != LogInfo {
		t.Error("parseLogLevel should default to info")
	}
}
