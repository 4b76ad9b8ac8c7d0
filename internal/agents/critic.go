// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/textgen"
	"github.com/pdiddy/report-writer/pkg/types"
)

// Feedback tokens. Gate feedback begins with exactly one of these; the
// workflow routes on the prefix and ignores trailing rationale.
const (
	FeedbackApproved = "APPROVED"
	FeedbackRevise   = "REVISE"
)

// Approved reports whether feedback carries the approval marker.
func Approved(feedback string) bool {
	return strings.HasPrefix(strings.TrimSpace(feedback), FeedbackApproved)
}

// Critic evaluates outlines and report drafts, answering with a feedback
// token followed by rationale.
type Critic struct {
	gen    textgen.Generator
	logger *zap.Logger
}

// NewCritic returns a Critic backed by gen.
func NewCritic(gen textgen.Generator, logger *zap.Logger) *Critic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Critic{gen: gen, logger: logger}
}

// CritiqueOutline evaluates an outline against its topic. The returned
// feedback begins with APPROVED or REVISE. A generation failure yields
// REVISE so a flaky critic never silently approves.
func (c *Critic) CritiqueOutline(ctx context.Context, topic string, outline []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are reviewing the outline of a research report on %q.\n", topic)
	b.WriteString("If the outline is complete, well ordered, and fully on topic, respond with the single word APPROVED.\n")
	b.WriteString("Otherwise respond starting with the word REVISE followed by specific, actionable critique.\n\nOutline:\n")
	for _, s := range outline {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return c.critique(ctx, b.String(), "outline")
}

// CritiqueReport evaluates a drafted report body. Same feedback contract
// as CritiqueOutline.
func (c *Critic) CritiqueReport(ctx context.Context, topic, report string) string {
	prompt := fmt.Sprintf(
		"You are reviewing a research report on %q for completeness, accuracy, and argument quality.\n"+
			"If it is publication ready, respond with the single word APPROVED.\n"+
			"Otherwise respond starting with the word REVISE followed by specific, actionable critique.\n\nReport:\n%s",
		topic, report)
	return c.critique(ctx, prompt, "report")
}

func (c *Critic) critique(ctx context.Context, prompt, subject string) string {
	out, err := textgen.GenerateWithRetry(ctx, c.gen, types.RoleCritic, prompt, 0)
	if err != nil {
		c.logger.Warn("critique generation failed, forcing revision",
			zap.String("subject", subject), zap.Error(err))
		return FeedbackRevise + ": critique unavailable, please revise for clarity and completeness"
	}

	feedback := strings.TrimSpace(out)
	if !strings.HasPrefix(feedback, FeedbackApproved) && !strings.HasPrefix(feedback, FeedbackRevise) {
		// Malformed verdicts are treated as revision requests with the
		// raw text as rationale.
		c.logger.Warn("critique missing verdict token", zap.String("subject", subject))
		feedback = FeedbackRevise + ": " + feedback
	}

	c.logger.Info("critique produced",
		zap.String("subject", subject),
		zap.Bool("approved", Approved(feedback)))
	return feedback
}
