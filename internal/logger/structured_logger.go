package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// LogLevel represents logging severity levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a log level, defaulting to INFO.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       string                 `json:"level"`
	Message     string                 `json:"message"`
	Service     string                 `json:"service"`
	Environment string                 `json:"environment"`
	RequestID   string                 `json:"request_id,omitempty"`
	Method      string                 `json:"method,omitempty"`
	Path        string                 `json:"path,omitempty"`
	StatusCode  int                    `json:"status_code,omitempty"`
	Duration    string                 `json:"duration,omitempty"`
	IP          string                 `json:"ip,omitempty"`
	Component   string                 `json:"component,omitempty"`
	Operation   string                 `json:"operation,omitempty"`
	Resource    string                 `json:"resource,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
}

// StructuredLogger provides production-ready JSON logging
type StructuredLogger struct {
	level       LogLevel
	service     string
	environment string
	output      *os.File
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level       LogLevel
	Service     string
	Environment string
	OutputPath  string
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(config LoggerConfig) (*StructuredLogger, error) {
	var output *os.File
	var err error

	if config.OutputPath == "" || config.OutputPath == "stdout" {
		output = os.Stdout
	} else {
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		output, err = os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}

	return &StructuredLogger{
		level:       config.Level,
		service:     config.Service,
		environment: config.Environment,
		output:      output,
	}, nil
}

// log writes a structured log entry
func (sl *StructuredLogger) log(level LogLevel, message string, fields map[string]interface{}) {
	if level < sl.level {
		return
	}

	entry := &LogEntry{
		Timestamp:   time.Now().UTC(),
		Level:       level.String(),
		Message:     message,
		Service:     sl.service,
		Environment: sl.environment,
		Fields:      fields,
	}

	jsonData, _ := json.Marshal(entry)
	fmt.Fprintf(sl.output, "%s\n", jsonData)
}

// Debug logs debug messages
func (sl *StructuredLogger) Debug(message string, fields ...map[string]interface{}) {
	sl.log(DEBUG, message, sl.mergeFields(fields...))
}

// Info logs info messages
func (sl *StructuredLogger) Info(message string, fields ...map[string]interface{}) {
	sl.log(INFO, message, sl.mergeFields(fields...))
}

// Warn logs warning messages
func (sl *StructuredLogger) Warn(message string, fields ...map[string]interface{}) {
	sl.log(WARN, message, sl.mergeFields(fields...))
}

// Error logs error messages
func (sl *StructuredLogger) Error(message string, err error, fields ...map[string]interface{}) {
	logFields := sl.mergeFields(fields...)
	if err != nil {
		logFields["error"] = err.Error()
	}
	sl.log(ERROR, message, logFields)
}

// Fatal logs fatal messages and exits
func (sl *StructuredLogger) Fatal(message string, err error, fields ...map[string]interface{}) {
	logFields := sl.mergeFields(fields...)
	if err != nil {
		logFields["error"] = err.Error()
		logFields["stack"] = sl.getStackTrace()
	}
	sl.log(FATAL, message, logFields)
	os.Exit(1)
}

// LogBusinessEvent logs billing lifecycle events (status transitions,
// conversions, sweep outcomes)
func (sl *StructuredLogger) LogBusinessEvent(event string, resource string, operation string, fields ...map[string]interface{}) {
	logFields := sl.mergeFields(fields...)
	logFields["component"] = "billing"
	logFields["operation"] = operation
	logFields["resource"] = resource

	sl.log(INFO, event, logFields)
}

// getStackTrace returns formatted stack trace
func (sl *StructuredLogger) getStackTrace() string {
	stack := make([]byte, 4096)
	length := runtime.Stack(stack, false)
	return string(stack[:length])
}

// mergeFields merges multiple field maps
func (sl *StructuredLogger) mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, field := range fields {
		for k, v := range field {
			result[k] = v
		}
	}
	return result
}

// LoggingMiddleware provides request logging middleware
func (sl *StructuredLogger) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Skip logging for health checks
		if path == "/health" {
			c.Next()
			return
		}

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("%d", start.UnixNano())
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		duration := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		entry := &LogEntry{
			Timestamp:   time.Now().UTC(),
			Level:       INFO.String(),
			Message:     "HTTP Request",
			Service:     sl.service,
			Environment: sl.environment,
			RequestID:   requestID,
			Method:      c.Request.Method,
			Path:        path,
			StatusCode:  c.Writer.Status(),
			Duration:    duration.String(),
			IP:          c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			entry.Fields = map[string]interface{}{"errors": c.Errors.String()}
		}

		jsonData, _ := json.Marshal(entry)
		fmt.Fprintf(sl.output, "%s\n", jsonData)
	}
}

// Close closes the logger output
func (sl *StructuredLogger) Close() error {
	if sl.output != os.Stdout && sl.output != os.Stderr {
		return sl.output.Close()
	}
	return nil
}

// Global logger instance
var GlobalLogger *StructuredLogger

// InitializeLogger initializes the global logger
func InitializeLogger(config LoggerConfig) error {
	var err error
	GlobalLogger, err = NewStructuredLogger(config)
	return err
}
