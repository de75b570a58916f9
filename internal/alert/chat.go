package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

// ChatTransport posts the alert to a Slack channel. String fields and every
// nested dict/list value in Details are recursively escaped and rendered
// inside a fenced code block, so no user-controlled content (a check's
// message or details) can inject chat markup (§4.7).
type ChatTransport struct {
	client    *slack.Client
	channelID string
}

// NewChatTransport builds a transport against a bot token and channel id.
func NewChatTransport(token, channelID string) *ChatTransport {
	return &ChatTransport{client: slack.New(token), channelID: channelID}
}

func (c *ChatTransport) Name() string { return "chat" }

func (c *ChatTransport) Send(ctx context.Context, a Alert) error {
	header := fmt.Sprintf("*[%s]* `%s` %s", strings.ToUpper(string(a.Severity)), escapeMrkdwn(a.CheckID), escapeMrkdwn(verb(a)))
	body := renderCodeBlock(a)
	_, _, err := c.client.PostMessageContext(ctx, c.channelID,
		slack.MsgOptionText(header+"\n"+body, false),
	)
	if err != nil {
		return fmt.Errorf("alert: slack post: %w", err)
	}
	return nil
}

func verb(a Alert) string {
	if a.Recovery {
		return "recovered"
	}
	return fmt.Sprintf("failing (%d consecutive)", a.ConsecutiveFails)
}

// renderCodeBlock escapes every string leaf in the alert's message and
// details recursively, then wraps the result in a fenced code block so
// Slack renders it verbatim instead of interpreting it as mrkdwn.
func renderCodeBlock(a Alert) string {
	payload := map[string]any{
		"message": escapeMrkdwn(a.Message),
		"details": escapeValue(a.Details),
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		b = []byte(escapeMrkdwn(a.Message))
	}
	return "```\n" + string(b) + "\n```"
}

// escapeValue recursively escapes string leaves within nested maps and
// slices, leaving the structure intact so the rendered JSON still reflects
// the original shape.
func escapeValue(v any) any {
	switch t := v.(type) {
	case string:
		return escapeMrkdwn(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[escapeMrkdwn(k)] = escapeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = escapeValue(val)
		}
		return out
	default:
		return t
	}
}

// escapeMrkdwn neutralizes Slack's mrkdwn control characters, per Slack's
// own escaping guidance for user-supplied text.
func escapeMrkdwn(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "```", "`​``")
	return s
}
