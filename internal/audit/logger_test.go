package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfig(t *testing.T) *Config {
	tmpDir := t.TempDir()
	return &Config{
		AuditLogPath: filepath.Join(tmpDir, "audit.log"),
		AppLogPath:   filepath.Join(tmpDir, "gumshoe.log"),
		MaxSize:      10,
		MaxBackups:   3,
		MaxAge:       7,
		Compress:     false,
		LogLevel:     "info",
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(testConfig(t))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if logger.App() == nil {
		t.Fatal("Expected application logger to be non-nil")
	}
}

func TestNewLoggerWithInvalidLevel(t *testing.T) {
	config := testConfig(t)
	config.LogLevel = "invalid"

	_, err := NewLogger(config)
	if err == nil {
		t.Fatal("Expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("Expected 'invalid log level' error, got: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.AuditLogPath != "logs/audit.log" {
		t.Errorf("Expected audit log path 'logs/audit.log', got %s", config.AuditLogPath)
	}
	if config.AppLogPath != "logs/gumshoe.log" {
		t.Errorf("Expected app log path 'logs/gumshoe.log', got %s", config.AppLogPath)
	}
	if config.LogLevel != "info" {
		t.Errorf("Expected log level 'info', got %s", config.LogLevel)
	}
}

func TestLogSessionLifecycle(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	sessionID := "sess-456"

	if err := logger.LogSessionStarted(ctx, sessionID, "api container keeps restarting"); err != nil {
		t.Fatalf("LogSessionStarted failed: %v", err)
	}
	if err := logger.LogSessionFinished(ctx, sessionID, 4, 5*time.Second); err != nil {
		t.Fatalf("LogSessionFinished failed: %v", err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	content, err := os.ReadFile(config.AuditLogPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	logContent := string(content)
	if !strings.Contains(logContent, sessionID) {
		t.Error("Log does not contain session ID")
	}
	if !strings.Contains(logContent, "session.started") {
		t.Error("Log does not contain started event")
	}
	if !strings.Contains(logContent, "session.finished") {
		t.Error("Log does not contain finished event")
	}
}

func TestLogProbeEvents(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()

	if err := logger.LogProbeExecuted(ctx, "sess-1", "container_logs", 1, nil, 200*time.Millisecond); err != nil {
		t.Fatalf("LogProbeExecuted failed: %v", err)
	}
	if err := logger.LogProbeExecuted(ctx, "sess-1", "container_exec", 2, errors.New("exec failed"), 0); err != nil {
		t.Fatalf("LogProbeExecuted failed: %v", err)
	}
	if err := logger.LogProbeSkipped(ctx, "sess-1", "container_logs", 3); err != nil {
		t.Fatalf("LogProbeSkipped failed: %v", err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	content, err := os.ReadFile(config.AuditLogPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	logContent := string(content)
	if !strings.Contains(logContent, "probe.executed") {
		t.Error("Log does not contain executed event")
	}
	if !strings.Contains(logContent, "probe.failed") {
		t.Error("Log does not contain failed event")
	}
	if !strings.Contains(logContent, "probe.skipped") {
		t.Error("Log does not contain skipped event")
	}
	if !strings.Contains(logContent, "exec failed") {
		t.Error("Log does not contain probe error")
	}
}

func TestBufferAutoFlush(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		event := NewEvent(EventConfigLoaded).WithCorrelationID("test")
		if err := logger.Log(ctx, event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	// Wait for auto-flush (1 second ticker)
	time.Sleep(1500 * time.Millisecond)

	content, err := os.ReadFile(config.AuditLogPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	if len(content) == 0 {
		t.Error("Audit log is empty after auto-flush")
	}
}

func TestBufferFullFlush(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 105; i++ {
		event := NewEvent(EventConfigLoaded).WithCorrelationID("test")
		if err := logger.Log(ctx, event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	content, err := os.ReadFile(config.AuditLogPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	lines := strings.Split(string(content), "\n")
	eventCount := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			eventCount++
		}
	}
	if eventCount < 105 {
		t.Errorf("Expected at least 105 events, got %d", eventCount)
	}
}

func TestCorrelationID(t *testing.T) {
	id1 := GenerateCorrelationID()
	id2 := GenerateCorrelationID()
	if id1 == id2 {
		t.Error("Generated correlation IDs should be unique")
	}
}

func TestEventBuilderChain(t *testing.T) {
	event := NewEvent(EventProbeExecuted).
		WithCorrelationID("corr-123").
		WithSession("sess-abc").
		WithProbe("container_logs", 3).
		WithDescription("Fetched api logs").
		WithResult(ResultSuccess).
		WithDuration(3 * time.Second).
		WithMetadata("tail", 50)

	if event.CorrelationID != "corr-123" {
		t.Errorf("Expected correlation ID 'corr-123', got %s", event.CorrelationID)
	}
	if event.SessionID != "sess-abc" {
		t.Errorf("Expected session 'sess-abc', got %s", event.SessionID)
	}
	if event.Probe != "container_logs" || event.Step != 3 {
		t.Errorf("Expected probe container_logs at step 3, got %s at %d", event.Probe, event.Step)
	}
	if event.DurationMs != 3000 {
		t.Errorf("Expected duration 3000ms, got %d", event.DurationMs)
	}
	if tail, ok := event.Metadata["tail"].(int); !ok || tail != 50 {
		t.Errorf("Expected metadata tail 50, got %v", event.Metadata["tail"])
	}
}

func TestEventJSONSerialization(t *testing.T) {
	event := NewEvent(EventSessionStarted).
		WithCorrelationID("sess-789").
		WithSession("sess-789")

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}
	if decoded.CorrelationID != "sess-789" {
		t.Errorf("Expected correlation ID 'sess-789', got %s", decoded.CorrelationID)
	}
	if decoded.EventType != EventSessionStarted {
		t.Errorf("Expected event type 'session.started', got %s", decoded.EventType)
	}
	if decoded.Result != ResultSuccess {
		t.Errorf("Expected result 'success', got %s", decoded.Result)
	}
}
