// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/httputil"
)

// languageToolBase is the grammar-check endpoint. Tests point it at a
// local httptest server.
var languageToolBase = "https://api.languagetool.org/v2/check"

// StyleIssue is one grammar or style finding.
type StyleIssue struct {
	Message string
	Context string
	Offset  int
}

// StyleChecker reports grammar and style issues in a text.
type StyleChecker interface {
	Check(ctx context.Context, text string) ([]StyleIssue, error)
}

// LanguageTool checks style through the LanguageTool HTTP API.
type LanguageTool struct {
	Client *http.Client
	Logger *zap.Logger
}

// NewLanguageTool returns a LanguageTool checker.
func NewLanguageTool(client *http.Client, logger *zap.Logger) *LanguageTool {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LanguageTool{Client: client, Logger: logger}
}

type languageToolResponse struct {
	Matches []struct {
		Message string `json:"message"`
		Offset  int    `json:"offset"`
		Context struct {
			Text string `json:"text"`
		} `json:"context"`
	} `json:"matches"`
}

// Check submits text for grammar checking and returns the findings.
func (lt *LanguageTool) Check(ctx context.Context, text string) ([]StyleIssue, error) {
	form := url.Values{
		"text":     {text},
		"language": {"en-US"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, languageToolBase,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building style check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httputil.DoWithRetry(ctx, lt.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("style check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("style check returned HTTP %d", resp.StatusCode)
	}

	var decoded languageToolResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding style check response: %w", err)
	}

	issues := make([]StyleIssue, 0, len(decoded.Matches))
	for _, m := range decoded.Matches {
		issues = append(issues, StyleIssue{
			Message: m.Message,
			Context: m.Context.Text,
			Offset:  m.Offset,
		})
	}
	lt.Logger.Info("style checked", zap.Int("issues", len(issues)))
	return issues, nil
}
