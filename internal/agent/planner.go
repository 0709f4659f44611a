package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tmc/langchaingo/llms"

	"github.com/arjun/scribe/internal/content"
	"github.com/arjun/scribe/internal/observability"
)

// ErrNoPlan means the model reply contained no recognizable step list.
// The planner still returns a degenerate single-step fallback so callers
// can show something, but no workflow may be created from it.
var ErrNoPlan = errors.New("model response contained no step list")

const fallbackStep = "Plan generation failed: the model did not return a structured step list."

// Planner asks the model for an ordered list of step descriptions.
type Planner struct {
	Model  llms.Model
	Logger *observability.Logger
}

func NewPlanner(model llms.Model, logger *observability.Logger) *Planner {
	return &Planner{Model: model, Logger: logger}
}

// GeneratePlan issues one non-streaming request and parses the reply into
// step descriptions. The reply is free text expected to contain a JSON
// array literal; anything the model wraps around it is ignored.
func (p *Planner) GeneratePlan(ctx context.Context, sessionID string, files []*content.File) ([]string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(plannerSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildPlanPrompt(files))},
		},
	}

	resp, err := p.Model.GenerateContent(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("plan request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return []string{fallbackStep}, ErrNoPlan
	}

	raw := resp.Choices[0].Content
	if p.Logger != nil {
		p.Logger.LogLLM(sessionID, "", "plan", raw)
	}

	steps, err := parseStepList(raw)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return []string{fallbackStep}, ErrNoPlan
	}
	if len(steps) < 3 || len(steps) > 6 {
		// The prompt asks for 3-6; accept whatever parsed cleanly.
		log.Printf("plan has %d steps, outside the requested 3-6 range", len(steps))
	}
	return steps, nil
}

// parseStepList locates the first array literal in free-form model text and
// parses it. Returns ErrNoPlan when no array is present at all; a located
// but unparseable array is a hard parse error even after a repair pass.
func parseStepList(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, nil // no array literal; caller maps this to ErrNoPlan
	}

	lit := raw[start : end+1]

	var steps []string
	if err := json.Unmarshal([]byte(lit), &steps); err != nil {
		repaired, repErr := jsonrepair.JSONRepair(lit)
		if repErr != nil {
			return nil, fmt.Errorf("malformed step list: %v", err)
		}
		if err := json.Unmarshal([]byte(repaired), &steps); err != nil {
			return nil, fmt.Errorf("malformed step list: %v", err)
		}
	}

	out := steps[:0]
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
