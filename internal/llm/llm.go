// Package llm implements the analysis supplier on the Anthropic API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/reviewloop/reviewloop/internal/analysis"
)

// Client wraps the Anthropic API as an analysis.Supplier.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for a review pass.
func buildPrompt(req analysis.Request) (system string, user string) {
	system = `You are a code reviewer. Given a unified diff, return ONLY a JSON array of finding objects with these fields:
- "file_path": path of the file the finding applies to (new side of the diff)
- "line_range": {"start": N, "end": N} - 1-indexed inclusive line numbers in the new file
- "category": one of "bug", "security", "performance", "correctness", "style", "maintainability", "testing", "docs"
- "severity": one of "info", "warning", "error"
- "message": concise description of the issue
- "suggested_fix": concrete fix suggestion (optional, empty string if none)
- "snippet": the exact changed lines the finding is about, copied verbatim from the diff (without +/- prefixes)

Rules:
- Only flag real issues in the changed lines; do not comment on unchanged context
- The snippet must quote the affected code so the finding can be tracked as line numbers shift
- One object per distinct issue; never repeat the same issue twice
- Return valid JSON only, no markdown fencing or explanation
- Return [] if the diff has no issues worth flagging`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reviewing %s at commit %s.\n", req.Subject, req.HeadCommit)
	if len(req.Files) > 0 {
		sb.WriteString("Changed files: ")
		sb.WriteString(strings.Join(req.Files, ", "))
		sb.WriteString("\n")
	}
	sb.WriteString("\nDiff:\n\n")
	sb.WriteString(req.Diff)
	user = sb.String()
	return
}

// Analyze sends the diff to the LLM and parses candidate findings out of
// the response. API and parse failures surface as analysis.ErrUnavailable
// so the cycle aborts without touching state.
func (c *Client) Analyze(ctx context.Context, req analysis.Request) ([]analysis.Candidate, error) {
	if strings.TrimSpace(req.Diff) == "" {
		return nil, nil
	}

	systemPrompt, userPrompt := buildPrompt(req)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 8192,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic API call: %v", analysis.ErrUnavailable, err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("%w: no text content in API response", analysis.ErrUnavailable)
	}

	candidates, err := parseCandidates(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrUnavailable, err)
	}
	return candidates, nil
}

// parseCandidates decodes the model's JSON array, stripping markdown
// fencing if present.
func parseCandidates(text string) ([]analysis.Candidate, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var candidates []analysis.Candidate
	if err := json.Unmarshal([]byte(text), &candidates); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	return candidates, nil
}

var _ analysis.Supplier = (*Client)(nil)
