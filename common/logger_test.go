package common

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAppLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newAppLogger(&buf, LevelInfo)

	logger.Debug("hidden")
	if buf.Len() > 0 {
		t.Fatal("Debug message should be filtered at Info level")
	}

	logger.SetLevel(LevelDebug)
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("SetLevel did not lower the level to Debug")
	}
}

func TestAppLogger_LogFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newAppLogger(&buf, LevelWarn)

	// Debug and Info should be filtered
	logger.Debug("debug message")
	logger.Info("info message")

	if buf.Len() > 0 {
		t.Error("Debug/Info messages should be filtered when level is Warn")
	}

	// Warn and Error should pass
	logger.Warn("warn message")
	if !strings.Contains(buf.String(), "WARN") {
		t.Error("Warn message should be logged")
	}

	buf.Reset()
	logger.Error("error message")
	if !strings.Contains(buf.String(), "ERROR") {
		t.Error("Error message should be logged")
	}
}

func TestAppLogger_LogFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := newAppLogger(&buf, LevelDebug)

	logger.Info("Test message with %s", "formatting")

	output := buf.String()

	if !strings.Contains(output, time.Now().Format("2006/01/02")) {
		t.Error("Log should contain date in YYYY/MM/DD format")
	}

	if !strings.Contains(output, "[INFO]") {
		t.Error("Log should contain level indicator")
	}

	if !strings.Contains(output, "Test message with formatting") {
		t.Error("Log should contain formatted message")
	}

	if !strings.Contains(output, "logger_test.go") {
		t.Errorf("Log should point at the calling file, got %q", output)
	}
}

func TestAppLogger_SetOutput(t *testing.T) {
	var first, second bytes.Buffer
	logger := newAppLogger(&first, LevelInfo)

	logger.SetOutput(&second)
	logger.Info("redirected")

	if first.Len() > 0 {
		t.Error("old output should not receive entries after SetOutput")
	}
	if !strings.Contains(second.String(), "redirected") {
		t.Error("new output should receive entries")
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAppLogger_ConcurrentSetOutput(t *testing.T) {
	var buf syncBuffer
	logger := newAppLogger(&buf, LevelInfo)

	global := GetLogger()
	global.SetOutput(io.Discard)
	defer global.SetOutput(os.Stdout)

	const n = 500
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			logger.Info("entry %d", i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			LogInfo("entry %d", i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			logger.SetOutput(&buf)
			global.SetOutput(io.Discard)
		}
	}()
	wg.Wait()

	if !strings.Contains(buf.String(), "entry") {
		t.Error("expected entries in the output")
	}
}

func TestDefaultLogConfig(t *testing.T) {
	if defaultMaxFileSize != 5 {
		t.Errorf("defaultMaxFileSize = %v, want 5MB", defaultMaxFileSize)
	}

	if defaultMaxBackups != 5 {
		t.Errorf("defaultMaxBackups = %v, want 5", defaultMaxBackups)
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.HasSuffix(dir, ConfigDirName) {
		t.Errorf("GetConfigDir() = %v, want suffix %v", dir, ConfigDirName)
	}
	if !FileExists(dir) {
		t.Error("GetConfigDir() should create the directory")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"10.0", []string{"10.0"}},
		{" 10.0 , 192.168.1 ,, ", []string{"10.0", "192.168.1"}},
	}

	for _, tt := range tests {
		got := SplitList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitList(%q)[%d] = %v, want %v", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "ctx") != nil {
		t.Error("WrapError(nil) should be nil")
	}

	err := WrapError(ErrTimeout, "waiting for tunnel")
	if err.Error() != "waiting for tunnel: operation timed out" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
