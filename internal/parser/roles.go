package parser

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// role names the Record field a well-known key is lifted into.
type role int

const (
	roleNone role = iota
	roleTimestamp
	roleLevel
	roleMessage
	roleThread
	roleLogger
	roleProcess
)

// roleKeys lists the accepted spellings for each role, most preferred first.
var roleKeys = [...][]string{
	roleTimestamp: {"timestamp", "time", "ts", "@timestamp", "created_at"},
	roleLevel:     {"level", "severity", "log_level", "lvl"},
	roleMessage:   {"message", "msg", "log", "text"},
	roleThread:    {"thread", "thread_name", "tid", "goroutine"},
	roleLogger:    {"logger", "logger_name", "category", "component"},
	roleProcess:   {"process", "pid", "process_name", "app"},
}

var keyRoles = func() map[string]role {
	m := make(map[string]role)
	for r, keys := range roleKeys {
		for _, k := range keys {
			m[k] = role(r)
		}
	}
	return m
}()

// roleOf returns the role of key, matched case-insensitively.
func roleOf(key string) role {
	return keyRoles[strings.ToLower(key)]
}

// lift stores v in the Record field for r. It reports false when v does not
// fit, for example a timestamp in no known layout, so the caller can keep
// the pair as an ordinary field instead.
func (rec *Record) lift(r role, v any) bool {
	if r == roleTimestamp {
		rec.Timestamp = parseTimestamp(v)
		return !rec.Timestamp.IsZero()
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return false
	}

	switch r {
	case roleLevel:
		rec.Level = normalizeLevel(s)
	case roleMessage:
		rec.Message = s
	case roleThread:
		rec.Thread = s
	case roleLogger:
		rec.Logger = s
	case roleProcess:
		rec.Process = s
	default:
		return false
	}
	return true
}

// normalizeLevel upper-cases a level and folds WARNING into WARN.
func normalizeLevel(level string) string {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "WARNING" {
		return "WARN"
	}
	return level
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

var timeFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05,000",
	"2006-01-02T15:04:05.000Z",
	"02/Jan/2006:15:04:05 -0700",
	"Jan  2 15:04:05",
	"Jan 2 15:04:05",
	"2006/01/02 15:04:05",
}

// parseTimestamp accepts the layouts in timeFormats and Unix epochs in
// seconds or milliseconds. Anything else yields the zero time.
func parseTimestamp(v any) time.Time {
	switch val := v.(type) {
	case string:
		for _, layout := range timeFormats {
			if t, err := time.Parse(layout, val); err == nil {
				return t
			}
		}
	case float64:
		if val > 1e12 {
			return time.UnixMilli(int64(val))
		}
		return time.Unix(int64(val), 0)
	}
	return time.Time{}
}
