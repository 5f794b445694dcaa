package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crimson-sun/whistle/internal/oracle"
)

var configured = Settings{APIKey: "key", Model: "model", MaxLength: 64}

// recordingOracle returns a canned response and remembers what it was sent.
type recordingOracle struct {
	resp  string
	err   error
	calls []oracle.Request
}

func (o *recordingOracle) Complete(_ context.Context, req oracle.Request) (string, error) {
	o.calls = append(o.calls, req)
	return o.resp, o.err
}

func TestClassifyNotConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
	}{
		{"empty", Settings{}},
		{"no key", Settings{Model: "m"}},
		{"no model", Settings{APIKey: "k", BaseURL: "http://localhost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &recordingOracle{resp: `{"is_anomaly":true,"reason":"x"}`}
			g := New(o, tt.settings)

			v := g.Classify(context.Background(), "kernel: panic")
			assert.False(t, v.IsAnomaly)
			assert.True(t, strings.HasPrefix(v.Reason, "LLM is not configured"))
			assert.Empty(t, v.SuggestedPattern)
			assert.Empty(t, o.calls, "oracle must not be called")
		})
	}
}

func TestClassifyNilOracle(t *testing.T) {
	g := New(nil, configured)
	assert.False(t, g.Configured())
	v := g.Classify(context.Background(), "x")
	assert.Equal(t, NotConfiguredReason, v.Reason)
}

func TestClassifyOracleUnreachable(t *testing.T) {
	o := &recordingOracle{err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused")}
	g := New(o, configured, WithLogger(zaptest.NewLogger(t)))

	v := g.Classify(context.Background(), "nginx: upstream timed out")
	assert.True(t, v.IsAnomaly)
	assert.Contains(t, v.Reason, "Error")
	assert.Contains(t, v.Reason, "connection refused")
	assert.Empty(t, v.SuggestedPattern)
}

func TestClassifyMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"not json", "I think this is fine"},
		{"broken json", `{"is_anomaly": tru`},
		{"missing is_anomaly", `{"reason":"fine"}`},
		{"missing reason", `{"is_anomaly":false,"suggested_pattern":"^x"}`},
		{"empty reason", `{"is_anomaly":false,"reason":"  "}`},
		{"wrong type", `{"is_anomaly":"no","reason":"fine"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(&recordingOracle{resp: tt.resp}, configured)
			v := g.Classify(context.Background(), "entry")
			assert.True(t, v.IsAnomaly)
			assert.Contains(t, v.Reason, "Error")
			assert.Empty(t, v.SuggestedPattern, "suggestions from a rejected response are dropped")
		})
	}
}

func TestClassifyValidResponse(t *testing.T) {
	o := &recordingOracle{resp: "```json\n" + `{"is_anomaly":false,"reason":"routine ssh connection","suggested_pattern":"^sshd\\[\\d+\\]: Connection from","suggested_name":" ssh-connect "}` + "\n```"}
	g := New(o, Settings{APIKey: "k", Model: "m", Hints: "ssh is noisy"})

	v := g.Classify(context.Background(), "sshd[42]: Connection from 10.0.0.1")
	assert.False(t, v.IsAnomaly)
	assert.Equal(t, "routine ssh connection", v.Reason)
	assert.Equal(t, `^sshd\[\d+\]: Connection from`, v.SuggestedPattern)
	assert.Equal(t, "ssh-connect", v.SuggestedName)

	require.Len(t, o.calls, 1)
	assert.Equal(t, "ssh is noisy", o.calls[0].Hints)
	assert.Equal(t, "sshd[42]: Connection from 10.0.0.1", o.calls[0].Entry)
}

func TestClassifyNullSuggestion(t *testing.T) {
	g := New(&recordingOracle{resp: `{"is_anomaly":true,"reason":"disk failure","suggested_pattern":null,"suggested_name":null}`}, configured)
	v := g.Classify(context.Background(), "ata1: failed command")
	assert.True(t, v.IsAnomaly)
	assert.False(t, v.HasSuggestion())
	assert.Empty(t, v.SuggestedName)
}

func TestClassifyTruncatesBeforeSubmission(t *testing.T) {
	o := &recordingOracle{resp: `{"is_anomaly":false,"reason":"ok"}`}
	g := New(o, configured)

	long := strings.Repeat("a", 500)
	g.Classify(context.Background(), long)

	require.Len(t, o.calls, 1)
	sent := o.calls[0].Entry
	assert.Equal(t, configured.MaxLength, utf8.RuneCountInString(sent))
	assert.True(t, strings.HasSuffix(sent, TruncationMarker))
}

func TestClassifyRateLimitCancelled(t *testing.T) {
	o := &recordingOracle{resp: `{"is_anomaly":false,"reason":"ok"}`}
	g := New(o, configured, WithRateLimit(0.001))

	// The first call consumes the burst token.
	g.Classify(context.Background(), "one")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := g.Classify(ctx, "two")
	assert.True(t, v.IsAnomaly)
	assert.Contains(t, v.Reason, "rate limit")
	assert.Len(t, o.calls, 1)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short", "abc", 20, "abc"},
		{"exact", strings.Repeat("x", 20), 20, strings.Repeat("x", 20)},
		{"long", strings.Repeat("x", 30), 20, "xxxxxx" + TruncationMarker},
		{"disabled", strings.Repeat("x", 30), 0, strings.Repeat("x", 30)},
		{"tiny bound", strings.Repeat("x", 30), 5, "...[t"},
		{"multibyte", strings.Repeat("é", 30), 20, "éééééé" + TruncationMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.maxLen)
			assert.Equal(t, tt.want, got)
			if tt.maxLen > 0 {
				assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.maxLen)
			}
		})
	}
}

func TestTruncateLengthProperty(t *testing.T) {
	for maxLen := len(TruncationMarker); maxLen < 80; maxLen++ {
		for n := maxLen + 1; n < maxLen+40; n += 7 {
			got := Truncate(strings.Repeat("k", n), maxLen)
			if utf8.RuneCountInString(got) != maxLen || !strings.HasSuffix(got, TruncationMarker) {
				t.Fatalf("Truncate(len=%d, %d) = %q", n, maxLen, got)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "abc", Summarize("abc", 3))
	assert.Equal(t, "ab...", Summarize("abc", 2))
}
