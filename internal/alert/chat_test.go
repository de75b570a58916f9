package alert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMrkdwnNeutralizesControlCharacters(t *testing.T) {
	got := escapeMrkdwn("a & b < c > d")
	assert.Equal(t, "a &amp; b &lt; c &gt; d", got)
}

func TestEscapeMrkdwnBreaksTripleBacktickFences(t *testing.T) {
	got := escapeMrkdwn("```\nmalicious fence\n```")
	assert.False(t, strings.Contains(got, "```"))
}

func TestEscapeValueRecursesThroughNestedStructures(t *testing.T) {
	in := map[string]any{
		"outer": map[string]any{
			"inner": []any{"<script>", "plain"},
		},
		"number": float64(42),
	}
	out := escapeValue(in).(map[string]any)
	nested := out["outer"].(map[string]any)["inner"].([]any)
	assert.Equal(t, "&lt;script&gt;", nested[0])
	assert.Equal(t, "plain", nested[1])
	assert.Equal(t, float64(42), out["number"])
}

func TestRenderCodeBlockWrapsPayloadInFence(t *testing.T) {
	out := renderCodeBlock(Alert{Message: "boom", Details: map[string]any{"k": "v"}})
	assert.True(t, strings.HasPrefix(out, "```\n"))
	assert.True(t, strings.HasSuffix(out, "\n```"))
	assert.Contains(t, out, `"message": "boom"`)
}

func TestVerbReflectsRecoveryState(t *testing.T) {
	assert.Equal(t, "recovered", verb(Alert{Recovery: true}))
	assert.Equal(t, "failing (4 consecutive)", verb(Alert{ConsecutiveFails: 4}))
}
