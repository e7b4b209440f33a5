package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

// statusAliases folds the spellings used across packages into one vocabulary:
// ok, fail, skip, retry, limited, stale, rejected, cancelled.
var statusAliases = map[string]string{
	"error":        "fail",
	"failed":       "fail",
	"rate_limited": "limited",
	"canceled":     "cancelled",
	"skipped":      "skip",
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if alias, ok := statusAliases[status]; ok {
		return alias
	}
	return status
}

var outcomes = map[string]bool{
	"ok":         true,
	"fail":       true,
	"cancelled":  true,
	"limited":    true,
	"validation": true,
	"stale":      true,
	"rejected":   true,
	"responder":  true,
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = normalizeStatus(outcome)
	return outcome, outcomes[outcome]
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"exchange_id",
	"cb_key",
	"outcome",
	"duration_ms",
	"stage",
	"from_stage",
	"to_stage",
	"field",
	"kind",
	"responder",
	"questions_asked",
	"history_len",
	"exit_code",
	"messages",
	"kb",
	"count",
	"pages",
	"mode",
	"listen",
	"db",
	"host",
	"path",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
}
