package agent

import (
	"github.com/arjun/scribe/internal/content"
	"github.com/google/uuid"
)

// StepStatus is the lifecycle state of one workflow step. Transitions are
// monotonic: pending -> processing -> completed | failed.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Terminal reports whether no further automatic transition can occur.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// WorkflowStep is one unit of work in the workflow, executed by one model
// call. Only the engine mutates status, content, and thinking.
type WorkflowStep struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	Content     string     `json:"content,omitempty"`
	Thinking    string     `json:"thinking,omitempty"`
}

func newStep(description string) *WorkflowStep {
	return &WorkflowStep{
		ID:          uuid.NewString(),
		Description: description,
		Status:      StepPending,
	}
}

// State is the engine's run state.
type State string

const (
	StateIdle     State = "idle"
	StatePlanning State = "planning"
	StateRunning  State = "running"
	StateHalted   State = "halted" // a step failed; reset or re-plan to continue
)

// EventType identifies engine events streamed to observers.
type EventType string

const (
	EventPlanCreated   EventType = "plan_created"
	EventStepStarted   EventType = "step_started"
	EventStepChunk     EventType = "step_chunk"
	EventStepCompleted EventType = "step_completed"
	EventStepFailed    EventType = "step_failed"
	EventWorkflowDone  EventType = "workflow_done"
	EventWorkflowError EventType = "workflow_error"
	EventReset         EventType = "reset"
)

// Event is one engine notification. Chunk events carry incremental text;
// step events carry a copy of the step at transition time.
type Event struct {
	Type    EventType      `json:"type"`
	StepID  string         `json:"step_id,omitempty"`
	Step    *WorkflowStep  `json:"step,omitempty"`
	Steps   []WorkflowStep `json:"steps,omitempty"`
	Chunk   string         `json:"chunk,omitempty"`
	Message string         `json:"message,omitempty"`
}

// EventSink receives engine events. Implementations must not block; the
// engine calls Emit from the workflow goroutine.
type EventSink interface {
	Emit(evt Event)
}

// Snapshot is the read-only view of an engine served to the UI.
type Snapshot struct {
	State         State           `json:"state"`
	Planning      bool            `json:"planning"`
	Executing     bool            `json:"executing"`
	CurrentStepID string          `json:"current_step_id,omitempty"`
	Steps         []WorkflowStep  `json:"steps"`
	Files         []*content.File `json:"files"`
	LastError     string          `json:"last_error,omitempty"`
}
