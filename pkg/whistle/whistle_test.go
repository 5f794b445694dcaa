package whistle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scripted answers by substring and counts calls.
type scripted struct {
	mu      sync.Mutex
	calls   []string
	answers map[string]Verdict
	err     error
}

func (s *scripted) classify(_ context.Context, line string) (Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, line)
	if s.err != nil {
		return Verdict{}, s.err
	}
	for k, v := range s.answers {
		if strings.Contains(line, k) {
			return v, nil
		}
	}
	return Verdict{Reason: "routine"}, nil
}

func TestNewRejectsInvalidRule(t *testing.T) {
	_, err := New(WithRules(Rule{Name: "bad", Pattern: "("}))
	require.Error(t, err)
}

func TestNewRejectsUnknownVerbosity(t *testing.T) {
	_, err := New(WithOutput(&bytes.Buffer{}, "chatty"))
	require.Error(t, err)
}

func TestCheckWithoutLLMIsNotAnomalous(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	defer a.Close()

	res := a.Check(context.Background(), "segfault at 0000")
	assert.False(t, res.Anomaly)
	assert.Contains(t, res.Reason, "LLM is not configured")
	assert.Equal(t, StageClassified, res.Stage)
}

func TestCheckBlankLine(t *testing.T) {
	s := &scripted{}
	a, err := New(WithClassifier(s.classify))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, Result{}, a.Check(context.Background(), "   "))
	assert.Empty(t, s.calls)
}

func TestCheckOverridesWithRule(t *testing.T) {
	s := &scripted{answers: map[string]Verdict{"cron": {Anomaly: true, Reason: "odd"}}}
	a, err := New(
		WithClassifier(s.classify),
		WithRules(Rule{Name: "cron", Pattern: `CRON\[\d+\]`}),
	)
	require.NoError(t, err)
	defer a.Close()

	res := a.Check(context.Background(), "CRON[123]: (root) CMD (run-parts /etc/cron.hourly)")
	assert.False(t, res.Anomaly)
	assert.Equal(t, StageOverridden, res.Stage)
	assert.Equal(t, "cron", res.Rule)
	assert.Equal(t, "Ignored by rule 'cron'", res.Reason)
	assert.Len(t, s.calls, 1, "live mode still consults the classifier")
}

func TestAnalyzeLearnsAndSuppresses(t *testing.T) {
	s := &scripted{answers: map[string]Verdict{
		"dhclient": {Reason: "lease renewal", SuggestedPattern: `dhclient\[\d+\]: DHCPACK`, SuggestedName: "dhcp-ack"},
		"oom":      {Anomaly: true, Reason: "out of memory"},
	}}
	var saved [][]Rule
	var alerts []string
	a, err := New(
		WithClassifier(s.classify),
		WithRuleSaver(func(rs []Rule) error {
			saved = append(saved, rs)
			return nil
		}),
		WithNotifier(func(_ context.Context, msg string) error {
			alerts = append(alerts, msg)
			return nil
		}),
		WithHost("web-1"),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	defer a.Close()

	rep, err := a.Analyze(context.Background(), []string{
		"dhclient[42]: DHCPACK from 10.0.0.1",
		"",
		"dhclient[42]: DHCPACK from 10.0.0.1",
		"kernel: oom-killer invoked",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Seen)
	assert.Equal(t, 1, rep.Suppressed)
	assert.Equal(t, 2, rep.Classified)
	assert.Equal(t, 1, rep.Learned)
	assert.Equal(t, 1, rep.Anomalies)
	require.Len(t, rep.Results, 3)

	require.NotNil(t, rep.Results[0].Learned)
	assert.Equal(t, "dhcp-ack", rep.Results[0].Learned.Name)
	assert.Equal(t, StageSuppressed, rep.Results[1].Stage)
	assert.Equal(t, "dhcp-ack", rep.Results[1].Rule)
	assert.True(t, rep.Results[2].Escalated)

	anomalies := rep.Anomalous()
	require.Len(t, anomalies, 1)
	assert.Equal(t, "kernel: oom-killer invoked", anomalies[0].Text)

	assert.Len(t, s.calls, 2)
	require.Len(t, saved, 1)
	assert.Equal(t, "dhcp-ack", saved[0][0].Name)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "web-1")
	assert.Contains(t, alerts[0], "out of memory")

	rs := a.Rules()
	require.Len(t, rs, 1)
	assert.Equal(t, `dhclient\[\d+\]: DHCPACK`, rs[0].Pattern)
}

func TestAnalyzeCountsFailures(t *testing.T) {
	s := &scripted{answers: map[string]Verdict{
		"benign": {Reason: "fine", SuggestedPattern: "benign"},
		"boom":   {Anomaly: true, Reason: "bad"},
	}}
	a, err := New(
		WithClassifier(s.classify),
		WithRuleSaver(func([]Rule) error { return errors.New("disk full") }),
		WithNotifier(func(context.Context, string) error { return errors.New("webhook down") }),
	)
	require.NoError(t, err)
	defer a.Close()

	rep, err := a.Analyze(context.Background(), []string{"benign thing", "boom"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PersistFailures)
	assert.Equal(t, 1, rep.NotifyFailures)
	assert.Equal(t, 1, rep.Learned, "rule stays active even when saving fails")
	assert.False(t, rep.Results[1].Escalated)
}

func TestClassifierErrorIsAnomaly(t *testing.T) {
	a, err := New(WithClassifier((&scripted{err: errors.New("timeout")}).classify))
	require.NoError(t, err)
	defer a.Close()

	res := a.Check(context.Background(), "anything")
	assert.True(t, res.Anomaly)
	assert.Contains(t, res.Reason, "timeout")
}

func TestClassifierEmptyReasonIsAnomaly(t *testing.T) {
	a, err := New(WithClassifier(func(context.Context, string) (Verdict, error) {
		return Verdict{Anomaly: false}, nil
	}))
	require.NoError(t, err)
	defer a.Close()

	res := a.Check(context.Background(), "anything")
	assert.True(t, res.Anomaly)
}

func TestSuggestedNameIsTrimmed(t *testing.T) {
	s := &scripted{answers: map[string]Verdict{
		"ntpd": {Reason: "clock sync", SuggestedPattern: `ntpd\[\d+\]`, SuggestedName: "  ntp-sync \n"},
	}}
	a, err := New(WithClassifier(s.classify))
	require.NoError(t, err)
	defer a.Close()

	res := a.Check(context.Background(), "ntpd[77]: adjusting local clock")
	require.NotNil(t, res.Learned)
	assert.Equal(t, "ntp-sync", res.Learned.Name)
	assert.Equal(t, "ntp-sync", a.Rules()[0].Name)
}

func TestClassifierSeesTruncatedLine(t *testing.T) {
	s := &scripted{}
	a, err := New(WithClassifier(s.classify), WithMaxLength(40))
	require.NoError(t, err)
	defer a.Close()

	a.Check(context.Background(), strings.Repeat("x", 500))
	require.Len(t, s.calls, 1)
	assert.Less(t, len(s.calls[0]), 500)
}

func TestAnalyzeCancelled(t *testing.T) {
	a, err := New(WithClassifier((&scripted{}).classify))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := a.Analyze(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rep.Seen)
}

func TestAddAndRemoveRule(t *testing.T) {
	var saved []Rule
	a, err := New(WithRuleSaver(func(rs []Rule) error {
		saved = rs
		return nil
	}))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.AddRule(Rule{Name: "ntp", Pattern: "ntpd"}))
	assert.Len(t, saved, 1)
	assert.Error(t, a.AddRule(Rule{Name: "ntp", Pattern: "other"}), "duplicate name")
	assert.Error(t, a.AddRule(Rule{Name: "broken", Pattern: "[a-"}))

	removed, err := a.RemoveRule("ntp")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, saved)

	removed, err = a.RemoveRule("ntp")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestOutputWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	a, err := New(WithClassifier((&scripted{}).classify), WithOutput(&buf, "minimal"))
	require.NoError(t, err)
	defer a.Close()

	a.Check(context.Background(), "hello")
	a.Check(context.Background(), "world")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Contains(t, got, "verdict")
}

func TestConcurrentChecks(t *testing.T) {
	s := &scripted{}
	a, err := New(WithClassifier(s.classify))
	require.NoError(t, err)
	defer a.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Check(context.Background(), "line")
		}()
	}
	wg.Wait()
	assert.Len(t, s.calls, 8)
}
