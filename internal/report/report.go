// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report assembles the final report document and writes it to
// disk under a deterministic, filesystem-safe name.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/report-writer/pkg/types"
)

// maxNameLen bounds the sanitized topic prefix of the output filename.
const maxNameLen = 50

// Assemble renders the final document: the formatted body, a methodology
// disclosure when sections were skipped, and the reference list.
func Assemble(state *types.WorkflowState) string {
	var b strings.Builder
	b.WriteString(state.FormattedReport)

	if len(state.Skipped) > 0 {
		fmt.Fprintf(&b, "\n\nNote on coverage: of the %d planned sections, %d could not be researched and were omitted:\n",
			len(state.Outline), len(state.Skipped))
		for _, s := range state.Skipped {
			fmt.Fprintf(&b, "- %s: %s\n", s.Section, s.Reason)
		}
	}

	if len(state.References) > 0 {
		b.WriteString("\n\nReferences:\n")
		for _, ref := range state.References {
			fmt.Fprintf(&b, "%s\n", ref)
		}
	}
	return b.String()
}

// Filename returns the deterministic output name for a topic: the
// sanitized topic truncated to 50 characters, a 10-character topic
// digest, and the _report.txt suffix. The digest keeps distinct topics
// with the same sanitized prefix from colliding.
func Filename(topic string) string {
	sum := sha256.Sum256([]byte(topic))
	digest := hex.EncodeToString(sum[:])[:10]
	return fmt.Sprintf("%s_%s_report.txt", sanitize(topic), digest)
}

// sanitize maps the topic to a filesystem-safe prefix: non-alphanumeric
// runs collapse to single underscores, truncated to maxNameLen.
func sanitize(topic string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(topic) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
		if b.Len() >= maxNameLen {
			break
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Save writes the assembled document under dir and returns the full path.
func Save(dir string, state *types.WorkflowState) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, Filename(state.Topic))
	if err := os.WriteFile(path, []byte(Assemble(state)), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
