package console

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/whistle/internal/model"
	"github.com/crimson-sun/whistle/internal/output"
)

func init() {
	color.NoColor = true
}

func outcome(stage model.Stage, anomaly bool) model.Outcome {
	return model.Outcome{
		Entry:   model.RawLog{Raw: "sshd[1]: Failed password for root\n"},
		Verdict: model.Verdict{IsAnomaly: anomaly, Reason: "brute force"},
		Stage:   stage,
	}
}

func TestAnomalyPrinted(t *testing.T) {
	var buf bytes.Buffer
	out := New(output.Standard, WithWriter(&buf))

	require.NoError(t, out.Write(context.Background(), outcome(model.StageClassified, true)))
	assert.Equal(t, "ANOMALY: brute force\n    sshd[1]: Failed password for root\n", buf.String())
}

func TestAnomalyMinimalOmitsEntry(t *testing.T) {
	var buf bytes.Buffer
	out := New(output.Minimal, WithWriter(&buf))

	require.NoError(t, out.Write(context.Background(), outcome(model.StageClassified, true)))
	assert.Equal(t, "ANOMALY: brute force\n", buf.String())
}

func TestNormalOnlyAtFull(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(output.Standard, WithWriter(&buf)).Write(context.Background(), outcome(model.StageClassified, false)))
	assert.Empty(t, buf.String())

	require.NoError(t, New(output.Full, WithWriter(&buf)).Write(context.Background(), outcome(model.StageClassified, false)))
	assert.Contains(t, buf.String(), "ok: sshd[1]")
}

func TestSuppressedHiddenByDefault(t *testing.T) {
	oc := outcome(model.StageSuppressed, false)
	oc.Rule = "ssh-noise"

	var buf bytes.Buffer
	require.NoError(t, New(output.Full, WithWriter(&buf)).Write(context.Background(), oc))
	assert.Empty(t, buf.String())

	require.NoError(t, New(output.Standard, WithWriter(&buf), WithShowSuppressed(true)).Write(context.Background(), oc))
	assert.Contains(t, buf.String(), "suppressed by 'ssh-noise':")
}

func TestLearnedRulePrinted(t *testing.T) {
	oc := outcome(model.StageClassified, false)
	oc.Learned = &model.LearnedRule{Name: "ssh-fail", Pattern: `Failed password`}

	var buf bytes.Buffer
	require.NoError(t, New(output.Standard, WithWriter(&buf)).Write(context.Background(), oc))
	assert.Equal(t, "learned rule 'ssh-fail': Failed password\n", buf.String())
}
