package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/whistle/internal/model"
	"github.com/crimson-sun/whistle/internal/output"
)

func testOutcome() model.Outcome {
	return model.Outcome{
		Entry: model.RawLog{
			Timestamp: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
			Source:    "journalctl",
			Raw:       "sshd[812]: Failed password for root from 203.0.113.9",
		},
		Verdict: model.Verdict{IsAnomaly: true, Reason: "brute force attempt"},
		Stage:   model.StageClassified,
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestOutputCompactJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Standard, false)
		out.Write(context.Background(), testOutcome())
	})

	// Should be single line (NDJSON).
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"entry", "verdict", "stage"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if _, ok := m["learned"]; ok {
		t.Error("learned should be omitted when empty")
	}
}

func TestOutputPrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Standard, true)
	if err := out.Write(context.Background(), testOutcome()); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented JSON output")
	}
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func TestOutputLearnedRule(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Minimal, false)

	oc := testOutcome()
	oc.Learned = &model.LearnedRule{Name: "ssh-brute", Pattern: `Failed password for \S+`}
	out.Write(context.Background(), oc)

	var got model.Outcome
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Learned == nil || got.Learned.Name != "ssh-brute" {
		t.Errorf("learned = %+v, want ssh-brute", got.Learned)
	}
	if got.Entry.Raw != "" {
		t.Error("Minimal verbosity should drop the raw entry")
	}
}
