package agent

import (
	"fmt"
	"strings"

	"github.com/arjun/scribe/internal/content"
)

const plannerSystemPrompt = `You are a workflow planner for a file analysis assistant.
The user has uploaded a set of files. Break the work into an ordered plan of
3 to 6 short steps. The final step must synthesize the results into a complete
solution or deliverable.
Respond with a JSON array of strings and NOTHING else.
Example: ["Analyze the code", "Fix the bug", "Generate the complete fixed code"]`

const executorSystemPrompt = `You are a step executor for a file analysis assistant.
Carry out exactly one step of a larger plan against the uploaded files.
Put your reasoning between <think> and </think>, then write the final output
of the step after the closing tag. Do not repeat the reasoning in the output.`

// buildFileContext renders every uploaded file into one prompt section.
// Binary payloads contribute their placeholder only; the model is text-only.
func buildFileContext(files []*content.File) string {
	var sb strings.Builder
	for _, f := range files {
		fmt.Fprintf(&sb, "=== File: %s (%s) ===\n", f.Name, f.Category)
		if f.Binary {
			sb.WriteString(f.Placeholder())
		} else {
			sb.WriteString(f.Text)
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// buildStepHistory renders the outputs of prior completed steps, in plan
// order. Failed and pending steps contribute nothing.
func buildStepHistory(prior []*WorkflowStep) string {
	var sb strings.Builder
	n := 0
	for i, s := range prior {
		if s.Status != StepCompleted {
			continue
		}
		n++
		fmt.Fprintf(&sb, "Step %d: %s\nResult:\n%s\n\n", i+1, s.Description, s.Content)
	}
	if n == 0 {
		return ""
	}
	return "## Results of previous steps\n\n" + sb.String()
}

func buildPlanPrompt(files []*content.File) string {
	return "## Uploaded files\n\n" + buildFileContext(files) +
		"\nProduce the plan now. JSON array of strings only."
}

func buildStepPrompt(step *WorkflowStep, files []*content.File, prior []*WorkflowStep) string {
	var sb strings.Builder
	if history := buildStepHistory(prior); history != "" {
		sb.WriteString(history)
	}
	sb.WriteString("## Uploaded files\n\n")
	sb.WriteString(buildFileContext(files))
	sb.WriteString("## Current step\n\n")
	sb.WriteString(step.Description)
	sb.WriteString("\n\nExecute this step now.")
	return sb.String()
}
