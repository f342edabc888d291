package workflow

import "strings"

// classifyError implements spec section 4.10/7's message-substring
// classification rule: timeout -> "timeout", auth keywords ->
// "authentication", validation keywords -> "validation", network/HTTP-code
// hints -> "api_error" (recoverable for 429/5xx/network/timeout),
// everything else -> "system_error".
//
// Grounded on the teacher's internal/workflow/execution_tracker.go, which
// classifies step failures the same way (by scanning the error string for
// fixed substrings) rather than relying on typed sentinel errors, since
// step errors cross a ToolCaller boundary that returns plain errors.
func classifyError(err error) (errType string, recoverable bool) {
	if err == nil {
		return "", false
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded"):
		return "timeout", true
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "invalid_token") || strings.Contains(msg, "401"):
		return "authentication", false
	case strings.Contains(msg, "validation") || strings.Contains(msg, "required field") ||
		strings.Contains(msg, "wrong type"):
		return "validation", false
	case containsAny(msg, "429", "500", "502", "503", "504", "connection refused", "network", "no such host"):
		return "api_error", true
	default:
		return "system_error", false
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
