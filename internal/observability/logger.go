package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeIntake    EventType = "intake"
	EventTypePlan      EventType = "plan"
	EventTypeStep      EventType = "step"
	EventTypeReasoning EventType = "reasoning"
	EventTypeExport    EventType = "export"
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeLLM       EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return NewLoggerAt(filepath.Join("logs", "llm.jsonl"))
}

// NewLoggerAt places the llm.jsonl mirror at an explicit path.
func NewLoggerAt(llmLogPath string) *Logger {
	return &Logger{
		llmLogPath: llmLogPath,
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogIntake(sessionID, filename, category string, size int64, rejected bool, reason string) {
	l.Log(Event{
		Type:      EventTypeIntake,
		SessionID: sessionID,
		Data: map[string]any{
			"filename": filename,
			"category": category,
			"size":     size,
			"rejected": rejected,
			"reason":   reason,
		},
	})
}

func (l *Logger) LogPlan(sessionID string, steps []string) {
	l.Log(Event{
		Type:      EventTypePlan,
		SessionID: sessionID,
		Data:      map[string]any{"steps": steps},
	})
}

func (l *Logger) LogStep(sessionID, stepID, status, description string) {
	l.Log(Event{
		Type:      EventTypeStep,
		SessionID: sessionID,
		StepID:    stepID,
		Data: map[string]string{
			"status":      status,
			"description": description,
		},
	})
}

func (l *Logger) LogReasoning(sessionID, stepID, content string) {
	l.Log(Event{
		Type:      EventTypeReasoning,
		SessionID: sessionID,
		StepID:    stepID,
		Data:      map[string]string{"content": content},
	})
}

func (l *Logger) LogExport(sessionID, stepID, kind, filename string) {
	l.Log(Event{
		Type:      EventTypeExport,
		SessionID: sessionID,
		StepID:    stepID,
		Data: map[string]string{
			"kind":     kind,
			"filename": filename,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(sessionID, stepID string, prompt any, response string) {
	l.Log(Event{
		Type:      EventTypeLLM,
		SessionID: sessionID,
		StepID:    stepID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}
