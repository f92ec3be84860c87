// Package slack sends action queue notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/scout/internal/pipeline"
)

const (
	maxReasoningLen = 3000
	httpTimeout     = 10 * time.Second
)

// Notifier posts newly enqueued high-priority action items to a Slack
// webhook. It implements pipeline.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, NotifyEnqueued
// is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// NotifyEnqueued posts an action item and its recommendation to the
// configured Slack webhook. If no webhook URL is configured, it returns
// nil immediately.
func (n *Notifier) NotifyEnqueued(ctx context.Context, item *pipeline.ActionItem, rec *pipeline.Recommendation) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(item, rec)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(item *pipeline.ActionItem, rec *pipeline.Recommendation) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(item, rec),
			{"type": "divider"},
			fieldsBlock(item, rec),
			{"type": "divider"},
			reasoningBlock(rec),
			{"type": "divider"},
			contextBlock(item, rec),
		},
	}
}

func headerBlock(item *pipeline.ActionItem, rec *pipeline.Recommendation) map[string]any {
	text := fmt.Sprintf("%s New Action: %s", priorityEmoji(rec.Score), humanizeAction(item.ActionType))

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(item *pipeline.ActionItem, rec *pipeline.Recommendation) map[string]any {
	owner := item.Owner
	if owner == "" {
		owner = "unassigned"
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Priority:* %.0f/100", rec.Score),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", item.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Due by:* %s", item.DueBy.UTC().Format("2006-01-02 15:04 UTC")),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Owner:* %s", owner),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func reasoningBlock(rec *pipeline.Recommendation) map[string]any {
	text := truncate(rec.Reasoning, maxReasoningLen)
	if text == "" {
		text = "_No reasoning available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Why*\n\n%s", text),
		},
	}
}

func contextBlock(item *pipeline.ActionItem, rec *pipeline.Recommendation) map[string]any {
	ts := rec.GeneratedAt
	if ts.IsZero() {
		ts = item.CreatedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("scout • action %s • %s", item.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func priorityEmoji(score float64) string {
	switch {
	case score >= 80:
		return "\U0001f534" // red circle
	case score >= 50:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func humanizeAction(actionType string) string {
	if actionType == "" {
		return "unknown"
	}
	return strings.ReplaceAll(actionType, "_", " ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
