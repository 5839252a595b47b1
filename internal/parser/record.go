// Package parser turns raw log lines into structured records and provides
// the stream decoder the follow engine reads through.
package parser

import "time"

// Format identifies the layout of a log line.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatLogfmt
	FormatPlain
)

var formatNames = [...]string{
	FormatUnknown: "unknown",
	FormatJSON:    "json",
	FormatLogfmt:  "logfmt",
	FormatPlain:   "plain",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return formatNames[FormatUnknown]
	}
	return formatNames[f]
}

// Record is a single decoded log entry. Records are treated as immutable once
// a decoder has produced them.
type Record struct {
	Timestamp time.Time
	Level     string
	Message   string
	// Thread, Logger and Process tag where the entry came from.
	Thread  string
	Logger  string
	Process string
	Fields  map[string]string
	Raw     string
	Format  Format
	// Offset is the byte position of the record's first byte in the stream
	// it was decoded from. It is only meaningful for that stream.
	Offset int64
}

// Body returns the record's message, falling back to the raw line.
func (r Record) Body() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Raw
}

// Parser turns one log line into a Record. Parsers never fail: a line they
// cannot make sense of becomes a record carrying only Raw and Message.
type Parser interface {
	Parse(line string) Record
}

// NewParser returns the parser for f. Unknown formats parse as plain text.
func NewParser(f Format) Parser {
	switch f {
	case FormatJSON:
		return &JSONParser{}
	case FormatLogfmt:
		return &LogfmtParser{}
	default:
		return &PlainParser{}
	}
}
