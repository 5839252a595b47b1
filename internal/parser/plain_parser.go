package parser

import (
	"regexp"
	"strings"
	"time"
)

// PlainParser parses free-form text lines. It recognises a leading
// timestamp, a level word, a syslog "name[pid]:" process tag and a log4j
// style "[thread]" after the level; the rest of the line is the message.
type PlainParser struct{}

var plainTimestampPatterns = []*regexp.Regexp{
	// ISO 8601 variants, including log4j's comma millis
	regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s+`),
	// Syslog: Jan  2 15:04:05
	regexp.MustCompile(`^([A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+`),
	// Apache/Nginx: 02/Jan/2006:15:04:05 -0700
	regexp.MustCompile(`\[(\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2}\s+[+-]\d{4})\]`),
	// Slash date: 2006/01/02 15:04:05
	regexp.MustCompile(`^(\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2})\s+`),
}

const plainLevels = `TRACE|DEBUG|INFO|WARN(?:ING)?|ERROR|FATAL|CRITICAL|PANIC`

var (
	levelPattern         = regexp.MustCompile(`(?i)\b(` + plainLevels + `)\b`)
	syslogProcessPattern = regexp.MustCompile(`^\S+\s+([\w.\-/]+)\[(\d+)\]:`)
	threadPattern        = regexp.MustCompile(`(?i)^(?:` + plainLevels + `)\s+\[([^\]\s]+)\]`)
)

// Parse parses a plain text line.
func (p *PlainParser) Parse(line string) Record {
	rec := Record{
		Raw:    line,
		Format: FormatPlain,
		Fields: make(map[string]string),
	}

	var rest string
	rec.Timestamp, rest = splitPlainTimestamp(line)

	if m := levelPattern.FindString(rest); m != "" {
		rec.Level = normalizeLevel(m)
	}
	if m := syslogProcessPattern.FindStringSubmatch(rest); m != nil {
		rec.Process = m[1]
		rec.Fields["pid"] = m[2]
	}
	if m := threadPattern.FindStringSubmatch(rest); m != nil {
		rec.Thread = m[1]
	}

	rec.Message = rest
	return rec
}

// splitPlainTimestamp finds the first timestamp pattern that parses and
// returns it with the line minus the timestamp. A line without one comes
// back unchanged.
func splitPlainTimestamp(line string) (time.Time, string) {
	for _, pat := range plainTimestampPatterns {
		m := pat.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if ts := parseTimestamp(strings.Replace(m[1], ",", ".", 1)); !ts.IsZero() {
			return ts, strings.TrimSpace(strings.Replace(line, m[0], "", 1))
		}
	}
	return time.Time{}, line
}
