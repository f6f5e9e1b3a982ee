package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/lerpz/lerpz-auth/pkg/logAction"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type LogType string

const (
	TypeDetail  LogType = "detail"
	TypeSummary LogType = "summary"
)

type DetailLog struct {
	Timestamp         string         `json:"timestamp"`
	Level             LogLevel       `json:"level"`
	Type              LogType        `json:"type"`
	Service           string         `json:"service"`
	Version           string         `json:"version"`
	TransactionID     string         `json:"transactionId,omitempty"`
	SessionID         string         `json:"sessionId,omitempty"`
	Action            string         `json:"action,omitempty"`
	ActionDescription string         `json:"actionDescription,omitempty"`
	SubAction         string         `json:"subAction,omitempty"`
	Message           string         `json:"message,omitempty"`
	Dependency        string         `json:"dependency,omitempty"`
	UserID            string         `json:"userId,omitempty"`
	ClientID          string         `json:"clientId,omitempty"`
	Duration          int64          `json:"duration,omitempty"`
	StatusCode        int            `json:"statusCode,omitempty"`
	Error             string         `json:"error,omitempty"`
	ErrorCode         string         `json:"errorCode,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

type LogOutputConfig struct {
	Path    string
	Console bool
	File    bool
}

type LoggerConfig struct {
	Summary LogOutputConfig
	Detail  LogOutputConfig
}

// DependencyMetadata annotates the next detail line with the external
// dependency it talks to and how long the round trip took.
type DependencyMetadata struct {
	Dependency   string
	ResponseTime int64
}

type Logger struct {
	service       string
	version       string
	config        *LoggerConfig
	transactionID string
	sessionID     string
	startTime     time.Time
	metadata      map[string]any
	dependency    *DependencyMetadata
}

func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Summary: LogOutputConfig{
			Path:    "./logs/summary/",
			Console: true,
			File:    false,
		},
		Detail: LogOutputConfig{
			Path:    "./logs/detail/",
			Console: true,
			File:    false,
		},
	}
}

func NewLogger(service, version string) *Logger {
	return &Logger{
		service:   service,
		version:   version,
		config:    DefaultConfig(),
		startTime: time.Now(),
		metadata:  make(map[string]any),
	}
}

func NewLoggerWithConfig(service, version string, config *LoggerConfig) *Logger {
	return &Logger{
		service:   service,
		version:   version,
		config:    config,
		startTime: time.Now(),
		metadata:  make(map[string]any),
	}
}

func (l *Logger) SetSessionID(sessionID string) {
	l.sessionID = sessionID
}

func (l *Logger) SetTransactionID(transactionID string) {
	l.transactionID = transactionID
}

func (l *Logger) SetDependencyMetadata(meta DependencyMetadata) *Logger {
	l.dependency = &meta
	return l
}

func (l *Logger) write(log DetailLog) {
	log.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	log.Service = l.service
	log.Version = l.version

	jsonLog, err := json.Marshal(log)
	if err != nil {
		return
	}

	jsonLog = append(jsonLog, '\n')

	var outputConfig LogOutputConfig
	if log.Type == TypeSummary {
		outputConfig = l.config.Summary
	} else {
		outputConfig = l.config.Detail
	}

	if outputConfig.Console {
		os.Stdout.Write(jsonLog)
	}

	if outputConfig.File {
		l.writeToFile(outputConfig.Path, log.Timestamp, jsonLog)
	}
}

func (l *Logger) writeToFile(basePath, timestamp string, data []byte) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return
	}

	// One file per day: YYYY-MM-DD.log
	date := timestamp[:10]
	filename := filepath.Join(basePath, date) + ".log"

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	f.Write(data)
}

// Detail logs detailed information with optional data masking
func (l *Logger) Detail(level LogLevel, actionInfo logAction.LoggerAction, data any, maskingRules ...MaskingRule) {
	var maskedData any
	if len(maskingRules) > 0 {
		maskedData = MaskData(data, maskingRules)
	} else {
		maskedData = data
	}

	log := DetailLog{
		Level:             level,
		Type:              TypeDetail,
		Action:            actionInfo.Action,
		ActionDescription: actionInfo.ActionDescription,
		SubAction:         actionInfo.SubAction,
		Message:           dataToString(maskedData),
		TransactionID:     l.transactionID,
		SessionID:         l.sessionID,
	}

	if l.dependency != nil {
		log.Dependency = l.dependency.Dependency
		log.Duration = l.dependency.ResponseTime
		l.dependency = nil
	}

	l.write(log)
}

func (l *Logger) Debug(actionInfo logAction.LoggerAction, data any, maskingRules ...MaskingRule) {
	l.Detail(LevelDebug, actionInfo, data, maskingRules...)
}

func (l *Logger) Info(actionInfo logAction.LoggerAction, data any, maskingRules ...MaskingRule) {
	l.Detail(LevelInfo, actionInfo, data, maskingRules...)
}

func (l *Logger) Warn(actionInfo logAction.LoggerAction, data any, maskingRules ...MaskingRule) {
	l.Detail(LevelWarn, actionInfo, data, maskingRules...)
}

func (l *Logger) Error(actionInfo logAction.LoggerAction, data any, maskingRules ...MaskingRule) {
	l.Detail(LevelError, actionInfo, data, maskingRules...)
}

// Flush writes a summary log with success status and resets accumulated state
func (l *Logger) Flush(statusCode int, message string) {
	duration := time.Since(l.startTime).Milliseconds()

	log := DetailLog{
		Level:         LevelInfo,
		Type:          TypeSummary,
		Message:       message,
		TransactionID: l.transactionID,
		SessionID:     l.sessionID,
		StatusCode:    statusCode,
		Duration:      duration,
		Metadata:      l.metadata,
	}

	l.write(log)
	l.cleanup()
}

// FlushError writes a summary log with error status and resets accumulated state
func (l *Logger) FlushError(statusCode int, message string) {
	duration := time.Since(l.startTime).Milliseconds()

	log := DetailLog{
		Level:         LevelError,
		Type:          TypeSummary,
		Message:       message,
		TransactionID: l.transactionID,
		SessionID:     l.sessionID,
		StatusCode:    statusCode,
		Duration:      duration,
		Metadata:      l.metadata,
	}

	l.write(log)
	l.cleanup()
}

func (l *Logger) cleanup() {
	l.metadata = make(map[string]any)
	l.startTime = time.Now()
}

// StartTransaction initializes a new transaction with IDs
func (l *Logger) StartTransaction(transactionID, sessionID string) {
	l.transactionID = transactionID
	l.sessionID = sessionID
	l.startTime = time.Now()
	l.metadata = make(map[string]any)
}

// AddMetadata adds or overwrites a metadata key-value pair
func (l *Logger) AddMetadata(key string, value any) {
	l.metadata[key] = value
}

func dataToString(data any) string {
	if data == nil {
		return ""
	}

	if str, ok := data.(string); ok {
		return str
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return ""
	}

	return string(jsonBytes)
}
