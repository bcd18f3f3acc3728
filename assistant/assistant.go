// Package assistant wraps the Claude API for two optional, read-mostly
// conveniences layered above the loop engine: suggesting a pad map from
// a natural-language description, and narrating a polled snapshot in
// plain English. Neither call is ever made from the engine's hot path;
// both are best-effort and degrade to a plain error on failure.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shotatanemura/termigroove/loopengine"
	"github.com/shotatanemura/termigroove/padmap"
)

const padMapSystemPrompt = `You are a sample-kit assistant for TermiGroove, a terminal live-looping sampler with 8 pads: Q W E R T Y U I.

Given a natural-language description of a kit, choose up to 8 sample names drawn from the provided list and assign each to one of the pad keys. Respond with ONLY a JSON object mapping pad key to sample name, no other text, no markdown fences. Example:

{"Q": "kick", "W": "snare", "E": "hat-closed", "R": "hat-open"}

Only use sample names from the list you are given. Omit pads you have no good sample for rather than guessing.`

const explainSystemPrompt = `You are narrating the state of a live-looping session in TermiGroove, for a musician glancing at the terminal mid-performance. Given the engine's current snapshot and a one-line summary of each recorded track, respond with 1-3 short sentences describing what is currently happening. Be concrete (mention counts, not vague praise) and conversational. No markdown, no bullet points.`

// Client wraps the Claude API client used by both assistant calls.
type Client struct {
	client anthropic.Client
}

// New constructs a Client from an explicit API key.
func New(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("assistant: ANTHROPIC_API_KEY not set")
	}
	return &Client{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

// NewFromEnv constructs a Client using the ANTHROPIC_API_KEY environment
// variable.
func NewFromEnv() (*Client, error) {
	return New(os.Getenv("ANTHROPIC_API_KEY"))
}

// SuggestPadMap asks the model to assign sampleNames to the default 8
// pad keys given a natural-language style description, e.g. "a
// four-on-the-floor house kit". The returned PadMap is otherwise
// identical to one loaded from disk: the caller still validates and
// saves it through package padmap.
func (c *Client) SuggestPadMap(ctx context.Context, prompt string, sampleNames []string) (padmap.PadMap, error) {
	if len(sampleNames) == 0 {
		return padmap.PadMap{}, fmt.Errorf("assistant: no sample names available to suggest from")
	}

	userMessage := fmt.Sprintf("Available samples: %s\n\nRequest: %s", strings.Join(sampleNames, ", "), prompt)

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: padMapSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	})
	if err != nil {
		return padmap.PadMap{}, fmt.Errorf("assistant: claude API error: %w", err)
	}

	var responseText strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			responseText.WriteString(tb.Text)
		}
	}

	return parsePadMapJSON(responseText.String())
}

// parsePadMapJSON parses a model response expected to be a flat JSON
// object mapping a single pad character to a sample name, e.g.
// {"Q": "kick", "W": "snare"}. Split out from SuggestPadMap so the
// parsing logic can be tested without a live API call.
func parsePadMapJSON(responseText string) (padmap.PadMap, error) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(strings.TrimSpace(responseText)), &raw); err != nil {
		return padmap.PadMap{}, fmt.Errorf("assistant: could not parse pad map suggestion: %w", err)
	}

	m := padmap.PadMap{Entries: make(map[rune]string, len(raw))}
	for padStr, sample := range raw {
		keys := []rune(padStr)
		if len(keys) != 1 {
			continue
		}
		m.Entries[keys[0]] = sample
	}

	if err := m.Validate(); err != nil {
		return padmap.PadMap{}, err
	}
	return m, nil
}

// ExplainLoop turns a polled LoopSnapshot plus a human-readable
// per-track summary into a short natural-language description. It is
// read-only: it consumes the snapshot, it never mutates engine state.
func (c *Client) ExplainLoop(ctx context.Context, snapshot loopengine.LoopSnapshot, trackSummaries []string) (string, error) {
	userMessage := fmt.Sprintf(
		"State: %s\nBPM: %d, bars: %d\nCycle position: %dms\nPaused: %v\nTracks:\n%s",
		snapshot.StateKind, snapshot.BPM, snapshot.Bars, snapshot.CyclePositionMs,
		snapshot.IsPaused, strings.Join(trackSummaries, "\n"),
	)

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: explainSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("assistant: claude API error: %w", err)
	}

	var responseText strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			responseText.WriteString(tb.Text)
		}
	}

	return strings.TrimSpace(responseText.String()), nil
}
