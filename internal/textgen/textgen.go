// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textgen abstracts the external text-generation capability. Every
// pipeline component that needs generated text depends on the Generator
// interface; the Gemini implementation lives in gemini.go. Callers are
// expected to handle generation failure locally (fallback score or text)
// rather than propagate it.
package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Generator produces text from a prompt. Implementations may fail
// transiently (network, quota); callers convert failures into local
// fallbacks.
type Generator interface {
	Generate(ctx context.Context, role, prompt string) (string, error)
}

// ErrParse marks a malformed response from the generation service. Callers
// substitute a conservative default and log the failure.
var ErrParse = errors.New("unparseable generation response")

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// GenerateWithRetry calls gen with exponential backoff between attempts.
// When maxRetries is 0 the default (3) is used.
func GenerateWithRetry(ctx context.Context, gen Generator, role, prompt string, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := gen.Generate(ctx, role, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// CleanJSONBlock removes Markdown code fence wrappers from a response.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ParseScore extracts a single [0,1] score from a response. It accepts a
// bare number, possibly surrounded by prose, and clamps out-of-range
// values. Returns ErrParse when no number can be found.
func ParseScore(text string) (float64, error) {
	for _, field := range strings.Fields(CleanJSONBlock(text)) {
		field = strings.Trim(field, ".,:;()[]")
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		return Clamp01(v), nil
	}
	return 0, fmt.Errorf("no numeric score in %q: %w", Excerpt(text, 80), ErrParse)
}

// ParseStringList extracts a list of strings from a response. It first
// tries a JSON array, then falls back to non-empty lines with list
// markers stripped. Returns ErrParse when nothing usable remains.
func ParseStringList(text string) ([]string, error) {
	cleaned := CleanJSONBlock(text)

	var fromJSON []string
	if err := json.Unmarshal([]byte(cleaned), &fromJSON); err == nil {
		var out []string
		for _, s := range fromJSON {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
		return nil, fmt.Errorf("empty list in response: %w", ErrParse)
	}

	var out []string
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. ")
		line = strings.Trim(line, `"',`)
		if line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no list items in response: %w", ErrParse)
	}
	return out, nil
}

// ParseScoreMap extracts an index-to-score mapping from a batched
// relevance response. Keys are parsed as integers and scores clamped to
// [0,1]. Returns ErrParse when the response is not a JSON object of
// numbers.
func ParseScoreMap(text string) (map[int]float64, error) {
	cleaned := CleanJSONBlock(text)
	var raw map[string]float64
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("parsing score map: %w", ErrParse)
	}

	out := make(map[int]float64, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		out[idx] = Clamp01(v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("score map has no integer keys: %w", ErrParse)
	}
	return out, nil
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

// Excerpt truncates s to at most n bytes at a rune boundary. Truncation is
// deterministic so repeated assessments of the same input see the same
// excerpt.
func Excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !isRuneStart(s[len(cut)]) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
