package classifier

// TruncationMarker is appended to entries cut to fit MaxLength.
const TruncationMarker = "...[truncated]"

// Truncate shortens s to exactly maxLen characters (runes), the last of
// which are TruncationMarker. Strings within the bound, and maxLen <= 0,
// are returned unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	marker := []rune(TruncationMarker)
	keep := maxLen - len(marker)
	if keep < 0 {
		return string(marker[:maxLen])
	}
	return string(r[:keep]) + TruncationMarker
}

// Summarize returns a bounded prefix of s for logs, rule comments and alerts.
func Summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
