package agent

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/arjun/scribe/internal/content"
	"github.com/arjun/scribe/internal/observability"
)

var (
	// ErrBusy means a plan or execution is already in progress.
	ErrBusy = errors.New("workflow already in progress")
	// ErrNoFiles means a workflow was requested with an empty file set.
	ErrNoFiles = errors.New("no files uploaded")
)

// RunRecorder persists workflow events for the audit trail. The engine
// never reads it back; a failed write is logged and ignored.
type RunRecorder interface {
	Append(sessionID, event, stepID, detail string) error
}

// Engine drives one session's workflow: it owns the file set, the step
// list, and the run state. A single goroutine executes steps strictly in
// plan order; every mutation goes through the mutex so snapshot readers
// always see a consistent view.
type Engine struct {
	sessionID string
	planner   *Planner
	executor  *Executor
	sink      EventSink
	logger    *observability.Logger
	recorder  RunRecorder

	mu            sync.Mutex
	gen           int // bumped on reset and re-plan; stale loops become no-ops
	state         State
	files         []*content.File
	steps         []*WorkflowStep
	currentStepID string
	lastError     string
}

func NewEngine(sessionID string, planner *Planner, executor *Executor, sink EventSink, logger *observability.Logger, recorder RunRecorder) *Engine {
	return &Engine{
		sessionID: sessionID,
		planner:   planner,
		executor:  executor,
		sink:      sink,
		logger:    logger,
		recorder:  recorder,
		state:     StateIdle,
	}
}

// AddFiles appends normalized files to the active set. Rejected while a
// plan or execution is in progress.
func (e *Engine) AddFiles(files ...*content.File) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePlanning || e.state == StateRunning {
		return ErrBusy
	}
	e.files = append(e.files, files...)
	return nil
}

// RemoveFile drops one file from the active set by id.
func (e *Engine) RemoveFile(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePlanning || e.state == StateRunning {
		return false
	}
	for i, f := range e.files {
		if f.ID == id {
			e.files = append(e.files[:i], e.files[i+1:]...)
			return true
		}
	}
	return false
}

// Step returns a copy of the step with the given id.
func (e *Engine) Step(id string) (WorkflowStep, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.steps {
		if s.ID == id {
			return *s, true
		}
	}
	return WorkflowStep{}, false
}

// Snapshot returns the UI-facing view of the engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	steps := make([]WorkflowStep, len(e.steps))
	for i, s := range e.steps {
		steps[i] = *s
	}
	files := append([]*content.File(nil), e.files...)
	return Snapshot{
		State:         e.state,
		Planning:      e.state == StatePlanning,
		Executing:     e.state == StateRunning,
		CurrentStepID: e.currentStepID,
		Steps:         steps,
		Files:         files,
		LastError:     e.lastError,
	}
}

// Reset tears down the step list and file set and returns to idle. An
// in-flight model call is not aborted; its results are discarded when it
// lands in a stale generation.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.gen++
	e.state = StateIdle
	e.steps = nil
	e.files = nil
	e.currentStepID = ""
	e.lastError = ""
	e.mu.Unlock()

	observability.SetStatus(observability.PhaseIdle, "")
	e.emit(Event{Type: EventReset})
	e.record("reset", "", "")
}

// CreateWorkflow generates a plan from the current file set and executes it
// to completion, halt, or reset. It blocks for the whole run; callers
// stream progress through the event sink. Allowed from idle and from a
// halted run (re-plan); the previous step list is replaced wholesale.
func (e *Engine) CreateWorkflow(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StatePlanning || e.state == StateRunning {
		e.mu.Unlock()
		return ErrBusy
	}
	if len(e.files) == 0 {
		e.mu.Unlock()
		return ErrNoFiles
	}
	e.gen++
	gen := e.gen
	e.steps = nil
	e.currentStepID = ""
	e.lastError = ""
	e.state = StatePlanning
	files := append([]*content.File(nil), e.files...)
	e.mu.Unlock()

	observability.SetStatus(observability.PhasePlanning, "")

	descs, err := e.planner.GeneratePlan(ctx, e.sessionID, files)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrNoPlan) && len(descs) > 0 {
			msg = descs[0]
		}
		e.abortPlanning(gen, msg)
		return err
	}

	steps := make([]*WorkflowStep, len(descs))
	for i, d := range descs {
		steps[i] = newStep(d)
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return nil // reset raced the plan call; drop the result
	}
	e.steps = steps
	e.state = StateRunning
	copies := make([]WorkflowStep, len(steps))
	for i, s := range steps {
		copies[i] = *s
	}
	e.mu.Unlock()

	if e.logger != nil {
		e.logger.LogPlan(e.sessionID, descs)
	}
	e.record("plan", "", strings.Join(descs, " | "))
	e.emit(Event{Type: EventPlanCreated, Steps: copies})

	e.run(ctx, gen, files)
	return nil
}

// run is the sequential execution loop: pick the first pending step, mark
// it processing, execute, record the terminal status, repeat. One failure
// halts the run; exhausting the list completes it.
func (e *Engine) run(ctx context.Context, gen int, files []*content.File) {
	for {
		step, prior, ok := e.claimNext(gen)
		if !ok {
			if e.finish(gen) {
				observability.SetStatus(observability.PhaseIdle, "")
				e.record("done", "", "")
				e.emit(Event{Type: EventWorkflowDone})
			}
			return
		}

		observability.SetStatus(observability.PhaseExecuting, step.Description)
		if e.logger != nil {
			e.logger.LogStep(e.sessionID, step.ID, string(StepProcessing), step.Description)
		}
		e.record("step_started", step.ID, step.Description)
		started := *step
		e.emit(Event{Type: EventStepStarted, StepID: step.ID, Step: &started})

		res := e.executor.Execute(ctx, e.sessionID, step, files, prior, func(chunk string) {
			e.emit(Event{Type: EventStepChunk, StepID: step.ID, Chunk: chunk})
		})

		if res.Err != nil {
			if e.fail(gen, step, res.Content) {
				observability.SetStatus(observability.PhaseIdle, "")
				if e.logger != nil {
					e.logger.LogStep(e.sessionID, step.ID, string(StepFailed), step.Description)
				}
				e.record("step_failed", step.ID, res.Content)
				failed := *step
				e.emit(Event{Type: EventStepFailed, StepID: step.ID, Step: &failed})
				e.emit(Event{Type: EventWorkflowError, Message: res.Content})
			}
			return
		}

		if e.complete(gen, step, res) {
			if e.logger != nil {
				e.logger.LogStep(e.sessionID, step.ID, string(StepCompleted), step.Description)
			}
			e.record("step_completed", step.ID, step.Description)
			completed := *step
			e.emit(Event{Type: EventStepCompleted, StepID: step.ID, Step: &completed})
		}
	}
}

// claimNext scans the step list in plan order for the first pending step
// and transitions it to processing. Earlier steps are guaranteed terminal
// because only this loop mutates statuses.
func (e *Engine) claimNext(gen int) (*WorkflowStep, []*WorkflowStep, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen || e.state != StateRunning {
		return nil, nil, false
	}
	for i, s := range e.steps {
		if s.Status == StepPending {
			s.Status = StepProcessing
			e.currentStepID = s.ID
			prior := append([]*WorkflowStep(nil), e.steps[:i]...)
			return s, prior, true
		}
	}
	return nil, nil, false
}

func (e *Engine) complete(gen int, step *WorkflowStep, res StepResult) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return false
	}
	step.Status = StepCompleted
	step.Content = res.Content
	step.Thinking = res.Thinking
	e.currentStepID = ""
	return true
}

func (e *Engine) fail(gen int, step *WorkflowStep, message string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return false
	}
	step.Status = StepFailed
	step.Content = message
	e.currentStepID = ""
	e.state = StateHalted
	e.lastError = message
	return true
}

// finish moves running to idle once no pending step remains.
func (e *Engine) finish(gen int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen || e.state != StateRunning {
		return false
	}
	e.state = StateIdle
	e.currentStepID = ""
	return true
}

func (e *Engine) abortPlanning(gen int, message string) {
	e.mu.Lock()
	if e.gen == gen {
		e.state = StateIdle
		e.lastError = message
	}
	e.mu.Unlock()
	observability.SetStatus(observability.PhaseIdle, "")
	e.record("plan_failed", "", message)
	e.emit(Event{Type: EventWorkflowError, Message: message})
}

func (e *Engine) emit(evt Event) {
	if e.sink != nil {
		e.sink.Emit(evt)
	}
}

func (e *Engine) record(event, stepID, detail string) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Append(e.sessionID, event, stepID, detail); err != nil {
		log.Printf("run log write failed: %v", err)
	}
}
