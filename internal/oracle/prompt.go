package oracle

import "strings"

// SystemPrompt describes the JSON contract the classifier expects back.
const SystemPrompt = `You are a Linux system log analyst. You receive exactly one log line and decide whether a human operator should be alerted about it.

Reply with a single JSON object and nothing else:
{
  "is_anomaly": true or false,
  "reason": "one sentence explaining the decision",
  "suggested_pattern": "optional Go RE2 regular expression matching this and similar harmless lines, or null",
  "suggested_name": "optional short kebab-case name for that pattern, or null"
}

Rules:
- Mark routine, expected or purely informational messages as not anomalous.
- Mark errors, failures, security events, hardware problems and crashes as anomalous.
- Only suggest a pattern for lines that are NOT anomalous and are likely to repeat. The pattern must not match on timestamps, PIDs or hostnames that change between occurrences; use \d+ or similar instead.
- Never suggest a pattern for an anomalous line.`

// BuildUserPrompt renders the per-entry message.
func BuildUserPrompt(req Request) string {
	var b strings.Builder
	if hints := strings.TrimSpace(req.Hints); hints != "" {
		b.WriteString("Operator policy (takes precedence over the general rules):\n")
		b.WriteString(hints)
		b.WriteString("\n\n")
	}
	b.WriteString("Log line:\n")
	b.WriteString(req.Entry)
	return b.String()
}
