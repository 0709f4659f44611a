package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/arjun/scribe/internal/content"
)

func planFiles() []*content.File {
	return []*content.File{textFile("main.py", "print(1)")}
}

func TestGeneratePlanParsesBareArray(t *testing.T) {
	model := &fakeModel{replies: []string{testPlanReply}}
	planner := NewPlanner(model, nil)

	steps, err := planner.GeneratePlan(context.Background(), "s", planFiles())
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	want := []string{"Analyze the code", "Fix the bug", "Generate the complete fixed code"}
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, steps[i], want[i])
		}
	}
}

func TestGeneratePlanIgnoresProseAroundArray(t *testing.T) {
	model := &fakeModel{replies: []string{
		"Sure! Here is a plan:\n" + testPlanReply + "\nHope that helps.",
	}}
	planner := NewPlanner(model, nil)

	steps, err := planner.GeneratePlan(context.Background(), "s", planFiles())
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(steps))
	}
}

func TestGeneratePlanRepairsSloppyJSON(t *testing.T) {
	// Trailing comma: invalid JSON, but recoverable.
	model := &fakeModel{replies: []string{`["Read the file", "Summarize it", "Write the report",]`}}
	planner := NewPlanner(model, nil)

	steps, err := planner.GeneratePlan(context.Background(), "s", planFiles())
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if len(steps) != 3 || steps[2] != "Write the report" {
		t.Fatalf("steps = %v", steps)
	}
}

func TestGeneratePlanNoArrayIsErrNoPlan(t *testing.T) {
	model := &fakeModel{replies: []string{"I cannot break this down into steps."}}
	planner := NewPlanner(model, nil)

	steps, err := planner.GeneratePlan(context.Background(), "s", planFiles())
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("err = %v, want ErrNoPlan", err)
	}
	if len(steps) != 1 || !strings.Contains(steps[0], "Plan generation failed") {
		t.Errorf("fallback steps = %v", steps)
	}
}

func TestGeneratePlanUnparseableArrayIsHardError(t *testing.T) {
	// Valid JSON array, wrong element type. Repair cannot change that.
	model := &fakeModel{replies: []string{`["Analyze", 42]`}}
	planner := NewPlanner(model, nil)

	_, err := planner.GeneratePlan(context.Background(), "s", planFiles())
	if err == nil || errors.Is(err, ErrNoPlan) {
		t.Fatalf("err = %v, want a parse error distinct from ErrNoPlan", err)
	}
}

func TestGeneratePlanPropagatesModelError(t *testing.T) {
	model := &fakeModel{replies: []string{testPlanReply}, errOn: 1}
	planner := NewPlanner(model, nil)

	_, err := planner.GeneratePlan(context.Background(), "s", planFiles())
	if err == nil || !strings.Contains(err.Error(), "plan request failed") {
		t.Fatalf("err = %v, want wrapped request failure", err)
	}
}

func TestParseStepListFiltersBlanks(t *testing.T) {
	steps, err := parseStepList(`["  a  ", "", "b", "   "]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || steps[0] != "a" || steps[1] != "b" {
		t.Errorf("steps = %v, want [a b]", steps)
	}
}

func TestParseStepListAcceptsOutOfRangeSizes(t *testing.T) {
	// Fewer than three steps still parse; the planner only warns.
	model := &fakeModel{replies: []string{`["Do everything at once"]`}}
	planner := NewPlanner(model, nil)

	steps, err := planner.GeneratePlan(context.Background(), "s", planFiles())
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(steps))
	}
}
