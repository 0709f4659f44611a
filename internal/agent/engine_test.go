package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/arjun/scribe/internal/content"
)

// fakeModel replays canned replies and records the prompts it was given.
// Replies are streamed in two chunks when a streaming func is registered.
type fakeModel struct {
	mu      sync.Mutex
	replies []string
	calls   int
	prompts []string
	errOn   int // 1-based call number that fails; 0 = never
	onCall  func(call int)
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.prompts = append(m.prompts, humanPrompt(messages))
	m.mu.Unlock()

	if m.onCall != nil {
		m.onCall(call)
	}
	if m.errOn != 0 && call == m.errOn {
		return nil, errors.New("model unavailable")
	}

	idx := call - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	reply := m.replies[idx]

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	if opts.StreamingFunc != nil {
		half := len(reply) / 2
		for _, part := range []string{reply[:half], reply[half:]} {
			if part == "" {
				continue
			}
			if err := opts.StreamingFunc(ctx, []byte(part)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(prompt)}},
	}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func (m *fakeModel) promptAt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.prompts) {
		return ""
	}
	return m.prompts[i]
}

func humanPrompt(messages []llms.MessageContent) string {
	for _, msg := range messages {
		if msg.Role != llms.ChatMessageTypeHuman {
			continue
		}
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				return tc.Text
			}
		}
	}
	return ""
}

// eventRecorder collects engine events in emission order.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Emit(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, e := range r.events {
		if e.Type == EventStepChunk {
			continue // chunk counts vary with reply lengths
		}
		out = append(out, e.Type)
	}
	return out
}

const testPlanReply = `["Analyze the code", "Fix the bug", "Generate the complete fixed code"]`

func testEngine(t *testing.T, model *fakeModel) (*Engine, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	planner := NewPlanner(model, nil)
	executor := NewExecutor(model, 1024, 0.5, nil)
	return NewEngine("sess-1", planner, executor, rec, nil, nil), rec
}

func textFile(name, text string) *content.File {
	return &content.File{ID: name, Name: name, Category: content.CategoryCode, Size: int64(len(text)), Text: text}
}

func TestCreateWorkflowRunsStepsInOrder(t *testing.T) {
	model := &fakeModel{replies: []string{
		testPlanReply,
		"<think>r1</think>out1",
		"<think>r2</think>out2",
		"<think>r3</think>out3",
	}}
	engine, rec := testEngine(t, model)
	if err := engine.AddFiles(textFile("main.py", "print(1)")); err != nil {
		t.Fatal(err)
	}

	if err := engine.CreateWorkflow(context.Background()); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	snap := engine.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("state = %s, want idle", snap.State)
	}
	if len(snap.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(snap.Steps))
	}

	wantDescs := []string{"Analyze the code", "Fix the bug", "Generate the complete fixed code"}
	for i, s := range snap.Steps {
		if s.Description != wantDescs[i] {
			t.Errorf("step %d description = %q, want %q", i, s.Description, wantDescs[i])
		}
		if s.Status != StepCompleted {
			t.Errorf("step %d status = %s, want completed", i, s.Status)
		}
		if want := fmt.Sprintf("out%d", i+1); s.Content != want {
			t.Errorf("step %d content = %q, want %q", i, s.Content, want)
		}
		if want := fmt.Sprintf("r%d", i+1); s.Thinking != want {
			t.Errorf("step %d thinking = %q, want %q", i, s.Thinking, want)
		}
	}

	wantTypes := []EventType{
		EventPlanCreated,
		EventStepStarted, EventStepCompleted,
		EventStepStarted, EventStepCompleted,
		EventStepStarted, EventStepCompleted,
		EventWorkflowDone,
	}
	got := rec.types()
	if len(got) != len(wantTypes) {
		t.Fatalf("event types = %v, want %v", got, wantTypes)
	}
	for i := range got {
		if got[i] != wantTypes[i] {
			t.Fatalf("event %d = %s, want %s (full: %v)", i, got[i], wantTypes[i], got)
		}
	}
}

func TestPlanResponseYieldsPendingStepsInOrder(t *testing.T) {
	// Fail the first step so the initial step list survives inspection.
	model := &fakeModel{replies: []string{testPlanReply}, errOn: 2}
	engine, _ := testEngine(t, model)
	_ = engine.AddFiles(textFile("a.go", "package a"))
	_ = engine.CreateWorkflow(context.Background())

	snap := engine.Snapshot()
	if len(snap.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(snap.Steps))
	}
	if snap.Steps[0].Status != StepFailed {
		t.Errorf("step 0 status = %s, want failed", snap.Steps[0].Status)
	}
	for i := 1; i < 3; i++ {
		if snap.Steps[i].Status != StepPending {
			t.Errorf("step %d status = %s, want pending", i, snap.Steps[i].Status)
		}
	}
}

func TestHaltOnFailure(t *testing.T) {
	// Call 3 is the second step's execution.
	model := &fakeModel{replies: []string{testPlanReply, "out1"}, errOn: 3}
	engine, rec := testEngine(t, model)
	_ = engine.AddFiles(textFile("a.go", "package a"))

	if err := engine.CreateWorkflow(context.Background()); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	snap := engine.Snapshot()
	if snap.State != StateHalted {
		t.Errorf("state = %s, want halted", snap.State)
	}
	if snap.Steps[0].Status != StepCompleted {
		t.Errorf("step 0 = %s, want completed", snap.Steps[0].Status)
	}
	if snap.Steps[1].Status != StepFailed {
		t.Errorf("step 1 = %s, want failed", snap.Steps[1].Status)
	}
	if !strings.Contains(snap.Steps[1].Content, "model unavailable") {
		t.Errorf("failed step content = %q, want the error message", snap.Steps[1].Content)
	}
	if snap.Steps[2].Status != StepPending {
		t.Errorf("step 2 = %s, want pending (never started)", snap.Steps[2].Status)
	}

	for _, typ := range rec.types() {
		if typ == EventWorkflowDone {
			t.Error("workflow_done emitted for a halted run")
		}
	}
	// Exactly two steps ever started.
	started := 0
	for _, typ := range rec.types() {
		if typ == EventStepStarted {
			started++
		}
	}
	if started != 2 {
		t.Errorf("%d steps started, want 2", started)
	}
}

func TestContextChaining(t *testing.T) {
	model := &fakeModel{replies: []string{testPlanReply, "out1", "out2", "out3"}}
	engine, _ := testEngine(t, model)
	_ = engine.AddFiles(textFile("a.go", "package a"))
	if err := engine.CreateWorkflow(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Prompt 0 is the plan call; prompt 2 is the second step.
	second := model.promptAt(2)
	if !strings.Contains(second, "Analyze the code") || !strings.Contains(second, "out1") {
		t.Errorf("second step prompt missing first step's description/result:\n%s", second)
	}
	if strings.Contains(second, "out2") || strings.Contains(second, "out3") {
		t.Errorf("second step prompt leaks later results:\n%s", second)
	}

	// The first step runs with no history section at all.
	first := model.promptAt(1)
	if strings.Contains(first, "Results of previous steps") {
		t.Errorf("first step prompt has a history section:\n%s", first)
	}
}

func TestPlanFailureReturnsToIdle(t *testing.T) {
	model := &fakeModel{replies: []string{"I cannot make a plan for this."}}
	engine, rec := testEngine(t, model)
	_ = engine.AddFiles(textFile("a.go", "package a"))

	err := engine.CreateWorkflow(context.Background())
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("err = %v, want ErrNoPlan", err)
	}

	snap := engine.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("state = %s, want idle", snap.State)
	}
	if len(snap.Steps) != 0 {
		t.Errorf("got %d steps, want none", len(snap.Steps))
	}
	if snap.LastError == "" {
		t.Error("last error not recorded")
	}

	sawError := false
	for _, typ := range rec.types() {
		if typ == EventWorkflowError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("no workflow_error event emitted")
	}
}

func TestCreateWorkflowRequiresFiles(t *testing.T) {
	engine, _ := testEngine(t, &fakeModel{replies: []string{testPlanReply}})
	if err := engine.CreateWorkflow(context.Background()); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("err = %v, want ErrNoFiles", err)
	}
}

func TestFileMutationRejectedMidRun(t *testing.T) {
	model := &fakeModel{replies: []string{testPlanReply, "out"}}
	engine, _ := testEngine(t, model)
	_ = engine.AddFiles(textFile("a.go", "package a"))

	model.onCall = func(call int) {
		if call != 2 {
			return
		}
		if err := engine.AddFiles(textFile("b.go", "package b")); !errors.Is(err, ErrBusy) {
			t.Errorf("AddFiles mid-run: err = %v, want ErrBusy", err)
		}
		if engine.RemoveFile("a.go") {
			t.Error("RemoveFile succeeded mid-run")
		}
	}

	if err := engine.CreateWorkflow(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestResetClearsEverything(t *testing.T) {
	model := &fakeModel{replies: []string{testPlanReply, "out"}}
	engine, _ := testEngine(t, model)
	_ = engine.AddFiles(textFile("a.go", "package a"))
	_ = engine.CreateWorkflow(context.Background())

	engine.Reset()

	snap := engine.Snapshot()
	if snap.State != StateIdle || len(snap.Steps) != 0 || len(snap.Files) != 0 {
		t.Errorf("snapshot after reset = %+v, want empty idle", snap)
	}
}

func TestReplanFromHaltedReplacesSteps(t *testing.T) {
	model := &fakeModel{replies: []string{testPlanReply}, errOn: 2}
	engine, _ := testEngine(t, model)
	_ = engine.AddFiles(textFile("a.go", "package a"))
	_ = engine.CreateWorkflow(context.Background())

	if engine.Snapshot().State != StateHalted {
		t.Fatal("setup: run did not halt")
	}

	// Fresh plan request restarts from planning; steps are replaced.
	model.mu.Lock()
	model.errOn = 0
	model.replies = []string{testPlanReply, "a", "b", "c"}
	model.calls = 0
	model.mu.Unlock()

	if err := engine.CreateWorkflow(context.Background()); err != nil {
		t.Fatalf("re-plan: %v", err)
	}
	snap := engine.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("state = %s, want idle", snap.State)
	}
	for i, s := range snap.Steps {
		if s.Status != StepCompleted {
			t.Errorf("step %d = %s, want completed", i, s.Status)
		}
	}
}
