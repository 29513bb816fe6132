package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventAnalyze   EventType = "analyze"
	EventConflict  EventType = "conflict"
	EventCollision EventType = "collision"
	EventFigure    EventType = "figure"
	EventPhoto     EventType = "photo"
	EventBackup    EventType = "backup"
	EventRestore   EventType = "restore"
	EventVerify    EventType = "verify"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the pipeline
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	Figure     string            `json:"figure,omitempty"`
	Series     string            `json:"series,omitempty"`
	SrcPath    string            `json:"src_path,omitempty"`
	DestPath   string            `json:"dest_path,omitempty"`
	Action     string            `json:"action,omitempty"`
	Resolution string            `json:"resolution,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Bytes      int64             `json:"bytes,omitempty"`
	Duration   int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate filename with timestamp
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Open file for writing
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	// Filter by minimum level
	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil // Skip events below minimum level
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogAnalyze logs the outcome of a merge analysis pass
func (l *EventLogger) LogAnalyze(archivePath string, sourceFigures, newFigures, conflicts, collisions int) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventAnalyze,
		SrcPath: archivePath,
		Extra: map[string]string{
			"source_figures": fmt.Sprintf("%d", sourceFigures),
			"new_figures":    fmt.Sprintf("%d", newFigures),
			"conflicts":      fmt.Sprintf("%d", conflicts),
			"collisions":     fmt.Sprintf("%d", collisions),
		},
	})
}

// LogConflict logs an identity conflict found during analysis
func (l *EventLogger) LogConflict(name, series string, targetID int64) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventConflict,
		Figure: name,
		Series: series,
		Reason: fmt.Sprintf("matches existing figure %d", targetID),
	})
}

// LogCollision logs a photo filename collision found during analysis
func (l *EventLogger) LogCollision(filename, srcPath, resolution string) error {
	return l.Log(&Event{
		Level:      LevelInfo,
		Event:      EventCollision,
		SrcPath:    srcPath,
		DestPath:   filename,
		Resolution: resolution,
	})
}

// LogFigure logs a figure mutation (or skip) during merge apply
func (l *EventLogger) LogFigure(name, series, action, resolution string) error {
	return l.Log(&Event{
		Level:      LevelInfo,
		Event:      EventFigure,
		Figure:     name,
		Series:     series,
		Action:     action,
		Resolution: resolution,
	})
}

// LogPhoto logs a photo copy/link/skip during merge apply
func (l *EventLogger) LogPhoto(srcPath, destPath, action, reason string, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelWarning
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventPhoto,
		SrcPath:  srcPath,
		DestPath: destPath,
		Action:   action,
		Reason:   reason,
		Error:    errMsg,
	})
}

// LogBackup logs an archive export
func (l *EventLogger) LogBackup(archivePath string, figures, photos, wishlist int, bytes int64, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventBackup,
		DestPath: archivePath,
		Bytes:    bytes,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
		Extra: map[string]string{
			"figures":  fmt.Sprintf("%d", figures),
			"photos":   fmt.Sprintf("%d", photos),
			"wishlist": fmt.Sprintf("%d", wishlist),
		},
	})
}

// LogRestore logs a destructive restore
func (l *EventLogger) LogRestore(archivePath string, figures, photos, wishlist int, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventRestore,
		SrcPath:  archivePath,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
		Extra: map[string]string{
			"figures":  fmt.Sprintf("%d", figures),
			"photos":   fmt.Sprintf("%d", photos),
			"wishlist": fmt.Sprintf("%d", wishlist),
		},
	})
}

// LogVerify logs a consistency-check finding
func (l *EventLogger) LogVerify(path, reason string) error {
	return l.Log(&Event{
		Level:   LevelWarning,
		Event:   EventVerify,
		SrcPath: path,
		Reason:  reason,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, srcPath string, err error) error {
	return l.Log(&Event{
		Level:   LevelError,
		Event:   event,
		SrcPath: srcPath,
		Error:   err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
