// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/pdiddy/report-writer/pkg/types"
)

// Gemini implements Generator against the Google Generative AI API. The
// role argument selects the model through the explicit ModelRoles table
// supplied at construction.
type Gemini struct {
	client *genai.Client
	roles  types.ModelRoles
}

// NewGemini creates a Gemini generator. The API key and role table are
// explicit; nothing is read from process-wide state.
func NewGemini(ctx context.Context, apiKey string, roles types.ModelRoles) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	if roles == nil {
		roles = types.DefaultModelRoles()
	}
	return &Gemini{client: client, roles: roles}, nil
}

// Generate produces text for the given role and prompt.
func (g *Gemini) Generate(ctx context.Context, role, prompt string) (string, error) {
	modelName := g.roles.Model(role)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for role %q", role)
	}

	model := g.client.GenerativeModel(modelName)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generating content (%s): %w", modelName, err)
	}
	return extractText(resp)
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response: %w", ErrParse)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response: %w", ErrParse)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response: %w", ErrParse)
	}
	return strings.Join(parts, ""), nil
}
