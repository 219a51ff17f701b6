// Package judge turns a case's accumulated arguments into a structured
// verdict by prompting an external generative model.
package judge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CaseInput is the judgment-relevant view of a case. Documents enter the
// prompt by count only; their content is never fetched.
type CaseInput struct {
	SideADocuments int
	SideBDocuments int
	SideAArguments []string
	SideBArguments []string
}

// Outcome is the parsed reply of one judgment round.
type Outcome struct {
	Verdict   string
	Reasoning string
}

// Engine invokes the model with bounded retries and parses its reply.
type Engine struct {
	client   Client
	attempts int
	delay    time.Duration
}

func New(client Client, attempts int, delay time.Duration) *Engine {
	if attempts < 1 {
		attempts = 1
	}
	return &Engine{client: client, attempts: attempts, delay: delay}
}

// Decide runs one judgment round. The model call is retried up to the
// configured attempt count with a fixed delay between attempts; once
// exhausted, the last error propagates and no partial outcome is returned.
func (e *Engine) Decide(ctx context.Context, input CaseInput) (Outcome, error) {
	prompt := BuildPrompt(input)

	var raw string
	var err error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		raw, err = e.client.Generate(ctx, prompt)
		if err == nil {
			break
		}
		if attempt == e.attempts {
			return Outcome{}, fmt.Errorf("model call failed after %d attempts: %w", e.attempts, err)
		}
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}

	verdict, reasoning := Parse(raw)
	return Outcome{Verdict: verdict, Reasoning: reasoning}, nil
}

// BuildPrompt composes the judicial request: per-side document counts and
// semicolon-joined argument texts, with an explicit reply format.
func BuildPrompt(input CaseInput) string {
	var b strings.Builder
	b.WriteString("As an AI Judge, analyze this legal case:\n\n")

	b.WriteString("SIDE A (PLAINTIFF):\n")
	fmt.Fprintf(&b, "Number of Documents: %d\n", input.SideADocuments)
	fmt.Fprintf(&b, "Arguments: %s\n\n", joinArguments(input.SideAArguments))

	b.WriteString("SIDE B (DEFENDANT):\n")
	fmt.Fprintf(&b, "Number of Documents: %d\n", input.SideBDocuments)
	fmt.Fprintf(&b, "Arguments: %s\n\n", joinArguments(input.SideBArguments))

	b.WriteString("Based on the evidence presented and legal arguments, provide a judicial decision.\n\n")
	b.WriteString("Format your response as:\n")
	b.WriteString("VERDICT: [Your decision favoring Side A or Side B]\n")
	b.WriteString("REASONING: [Your detailed legal analysis]\n")
	return b.String()
}

func joinArguments(arguments []string) string {
	if len(arguments) == 0 {
		return "No arguments submitted"
	}
	return strings.Join(arguments, "; ")
}

var (
	verdictRe   = regexp.MustCompile(`(?i)VERDICT:\s*(.+?)(?:\n|REASONING:|$)`)
	reasoningRe = regexp.MustCompile(`(?is)REASONING:\s*(.+)`)
)

// Parse extracts the verdict and reasoning from a raw model reply. When a
// marker is missing it falls back to the first line / the whole reply, so
// unexpected formatting never fails a judgment.
func Parse(raw string) (verdict, reasoning string) {
	if m := verdictRe.FindStringSubmatch(raw); m != nil {
		verdict = strings.TrimSpace(m[1])
	} else {
		verdict = strings.TrimSpace(firstLine(raw))
	}

	if m := reasoningRe.FindStringSubmatch(raw); m != nil {
		reasoning = strings.TrimSpace(m[1])
	} else {
		reasoning = strings.TrimSpace(raw)
	}
	return verdict, reasoning
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
