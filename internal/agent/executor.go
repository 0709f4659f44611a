package agent

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/arjun/scribe/internal/content"
	"github.com/arjun/scribe/internal/observability"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// StepResult is the outcome of executing one step. A transport or model
// error never escapes: it is folded into a synthetic failed result with the
// error message as content and Err set for the loop to record.
type StepResult struct {
	Content  string
	Thinking string
	Err      error
}

// Executor runs one workflow step against the model, streaming output.
type Executor struct {
	Model       llms.Model
	MaxTokens   int
	Temperature float64
	Logger      *observability.Logger
}

func NewExecutor(model llms.Model, maxTokens int, temperature float64, logger *observability.Logger) *Executor {
	return &Executor{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Logger:      logger,
	}
}

// Execute streams the model response for one step. onChunk is invoked with
// each text fragment in arrival order; it must not block. Prior steps feed
// the prompt's context section; only completed ones contribute.
func (e *Executor) Execute(ctx context.Context, sessionID string, step *WorkflowStep, files []*content.File, prior []*WorkflowStep, onChunk func(string)) StepResult {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(executorSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildStepPrompt(step, files, prior))},
		},
	}

	var buf strings.Builder
	opts := []llms.CallOption{
		llms.WithMaxTokens(e.MaxTokens),
		llms.WithTemperature(e.Temperature),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			text := string(chunk)
			buf.WriteString(text)
			if onChunk != nil {
				onChunk(text)
			}
			return nil
		}),
	}

	resp, err := e.Model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return StepResult{
			Content: "Step execution failed: " + err.Error(),
			Err:     err,
		}
	}

	raw := buf.String()
	if raw == "" && len(resp.Choices) > 0 {
		// Provider answered without invoking the streaming callback.
		raw = resp.Choices[0].Content
	}

	if e.Logger != nil {
		e.Logger.LogLLM(sessionID, step.ID, step.Description, raw)
	}

	thinking, final := SplitThinking(raw)
	if thinking != "" && e.Logger != nil {
		e.Logger.LogReasoning(sessionID, step.ID, thinking)
	}
	return StepResult{Content: final, Thinking: thinking}
}

// SplitThinking separates the delimited reasoning segment from the final
// content. Only the first matched pair counts; with no pair the input comes
// back unchanged as content and the trace is empty.
func SplitThinking(raw string) (thinking, content string) {
	start := strings.Index(raw, thinkOpen)
	if start < 0 {
		return "", raw
	}
	rest := raw[start+len(thinkOpen):]
	end := strings.Index(rest, thinkClose)
	if end < 0 {
		return "", raw
	}
	thinking = strings.TrimSpace(rest[:end])
	content = strings.TrimSpace(raw[:start] + rest[end+len(thinkClose):])
	return thinking, content
}
