package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// LogSession logs session lifecycle events
	LogSessionStarted(ctx context.Context, sessionID, problem string) error
	LogSessionFinished(ctx context.Context, sessionID string, steps int, duration time.Duration) error

	// LogProbe logs probe execution events
	LogProbeExecuted(ctx context.Context, sessionID, probe string, step int, err error, duration time.Duration) error
	LogProbeSkipped(ctx context.Context, sessionID, probe string, step int) error

	// LogReasonerFailure logs a degraded Reasoner round-trip
	LogReasonerFailure(ctx context.Context, sessionID, function string, err error) error

	// App returns the structured application logger
	App() *zap.Logger

	// Sync flushes buffered log entries
	Sync() error

	// Close closes the audit logger
	Close() error
}

// Config represents audit logger configuration
type Config struct {
	// AuditLogPath is the path to the audit log file
	AuditLogPath string

	// AppLogPath is the path to the application log file
	AppLogPath string

	// MaxSize is the maximum size in megabytes before rotation
	MaxSize int

	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int

	// MaxAge is the maximum number of days to retain old log files
	MaxAge int

	// Compress determines if rotated files should be compressed
	Compress bool

	// LogLevel is the minimum log level (debug, info, warn, error)
	LogLevel string
}

// DefaultConfig returns default audit logger configuration
func DefaultConfig() *Config {
	return &Config{
		AuditLogPath: "logs/audit.log",
		AppLogPath:   "logs/gumshoe.log",
		MaxSize:      50, // megabytes
		MaxBackups:   5,
		MaxAge:       30, // days
		Compress:     true,
		LogLevel:     "info",
	}
}

// auditLogger implements the Logger interface
type auditLogger struct {
	appLogger   *zap.Logger
	auditLogger *zap.Logger
	config      *Config
	mu          sync.Mutex
	buffer      []*Event
	flushTicker *time.Ticker
	stopCh      chan struct{}
}

// NewLogger creates a new audit logger
func NewLogger(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zapcore.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", config.LogLevel, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	appRotator := &lumberjack.Logger{
		Filename:   config.AppLogPath,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	appCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(appRotator),
		level,
	)
	appLogger := zap.New(appCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	// Audit log is append-only and always INFO level.
	auditRotator := &lumberjack.Logger{
		Filename:   config.AuditLogPath,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	auditCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(auditRotator),
		zapcore.InfoLevel,
	)
	auditZapLogger := zap.New(auditCore)

	logger := &auditLogger{
		appLogger:   appLogger,
		auditLogger: auditZapLogger,
		config:      config,
		buffer:      make([]*Event, 0, 100),
		flushTicker: time.NewTicker(1 * time.Second),
		stopCh:      make(chan struct{}),
	}
	go logger.autoFlush()

	return logger, nil
}

// Log logs an audit event
func (l *auditLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, event)
	if len(l.buffer) >= 100 {
		return l.flushLocked()
	}
	return nil
}

// flushLocked flushes the buffer (caller must hold lock)
func (l *auditLogger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}
	for _, event := range l.buffer {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			l.appLogger.Error("failed to marshal audit event",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)),
			)
			continue
		}
		l.auditLogger.Info(string(eventJSON),
			zap.String("correlation_id", event.CorrelationID),
			zap.String("event_type", string(event.EventType)),
			zap.String("result", string(event.Result)),
		)
	}
	l.buffer = l.buffer[:0]
	return nil
}

// autoFlush periodically flushes the buffer
func (l *auditLogger) autoFlush() {
	for {
		select {
		case <-l.flushTicker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// LogSessionStarted logs when a debug session starts
func (l *auditLogger) LogSessionStarted(ctx context.Context, sessionID, problem string) error {
	event := NewEvent(EventSessionStarted).
		WithCorrelationID(sessionID).
		WithSession(sessionID).
		WithDescription(fmt.Sprintf("Session started: %s", problem))
	return l.Log(ctx, event)
}

// LogSessionFinished logs when a debug session finishes
func (l *auditLogger) LogSessionFinished(ctx context.Context, sessionID string, steps int, duration time.Duration) error {
	event := NewEvent(EventSessionFinished).
		WithCorrelationID(sessionID).
		WithSession(sessionID).
		WithDuration(duration).
		WithMetadata("steps", steps).
		WithDescription(fmt.Sprintf("Session %s finished after %d step(s)", sessionID, steps))
	return l.Log(ctx, event)
}

// LogProbeExecuted logs one completed probe, successful or not
func (l *auditLogger) LogProbeExecuted(ctx context.Context, sessionID, probe string, step int, err error, duration time.Duration) error {
	eventType := EventProbeExecuted
	if err != nil {
		eventType = EventProbeFailed
	}
	event := NewEvent(eventType).
		WithCorrelationID(sessionID).
		WithSession(sessionID).
		WithProbe(probe, step).
		WithDuration(duration).
		WithError(err).
		WithDescription(fmt.Sprintf("Probe %s executed at step %d", probe, step))
	return l.Log(ctx, event)
}

// LogProbeSkipped logs a planned probe rejected as a duplicate
func (l *auditLogger) LogProbeSkipped(ctx context.Context, sessionID, probe string, step int) error {
	event := NewEvent(EventProbeSkipped).
		WithCorrelationID(sessionID).
		WithSession(sessionID).
		WithProbe(probe, step).
		WithResult(ResultSkipped).
		WithDescription(fmt.Sprintf("Probe %s skipped at step %d (duplicate plan)", probe, step))
	return l.Log(ctx, event)
}

// LogReasonerFailure logs a Reasoner round-trip that degraded to a note
func (l *auditLogger) LogReasonerFailure(ctx context.Context, sessionID, function string, err error) error {
	event := NewEvent(EventReasonerFailed).
		WithCorrelationID(sessionID).
		WithSession(sessionID).
		WithError(err).
		WithMetadata("function", function).
		WithDescription(fmt.Sprintf("Reasoner %s call failed", function))
	return l.Log(ctx, event)
}

// App returns the structured application logger
func (l *auditLogger) App() *zap.Logger {
	return l.appLogger
}

// Sync flushes buffered log entries
func (l *auditLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}
	if err := l.auditLogger.Sync(); err != nil {
		return err
	}
	return l.appLogger.Sync()
}

// Close closes the audit logger
func (l *auditLogger) Close() error {
	close(l.stopCh)
	l.flushTicker.Stop()
	return l.Sync()
}

// GenerateCorrelationID generates a new correlation ID
func GenerateCorrelationID() string {
	return uuid.New().String()
}
