package checks

import (
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

// passResult, failResult, and errorResult finish a Result started by the
// caller (CheckID/TraceID already set), stamping latency, status, message,
// and details. Centralizing this keeps the per-check Run bodies focused on
// classification logic instead of bookkeeping.

func passResult(res check.Result, start time.Time, message string, details map[string]any) check.Result {
	return finish(res, check.StatusPass, start, message, details)
}

func warnResult(res check.Result, start time.Time, message string, details map[string]any) check.Result {
	return finish(res, check.StatusWarn, start, message, details)
}

func failResult(res check.Result, start time.Time, message string, details map[string]any) check.Result {
	return finish(res, check.StatusFail, start, message, details)
}

func errorResult(res check.Result, start time.Time, message string, details map[string]any) check.Result {
	return finish(res, check.StatusError, start, message, details)
}

func finish(res check.Result, status check.Status, start time.Time, message string, details map[string]any) check.Result {
	res.Status = status
	res.Timestamp = time.Now().UTC()
	res.LatencyMS = time.Since(start).Milliseconds()
	res.Message = message
	res.Details = details
	return res
}

// credentialMissingResult produces the fixed "credential missing" error
// result required by §4.4/§7 when an authenticated check lacks its key.
func credentialMissingResult(res check.Result, start time.Time) check.Result {
	return errorResult(res, start, "credential missing", nil)
}
