package parser

import "strings"

// DetectFormat returns the format shared by most of the sample lines. Ties
// go to the more structured format; blank lines do not vote.
func DetectFormat(lines []string) Format {
	var votes [len(formatNames)]int
	for _, line := range lines {
		votes[detectLine(line)]++
	}

	best, bestVotes := FormatUnknown, 0
	for _, f := range []Format{FormatJSON, FormatLogfmt, FormatPlain} {
		if votes[f] > bestVotes {
			best, bestVotes = f, votes[f]
		}
	}
	return best
}

func detectLine(line string) Format {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return FormatUnknown
	case line[0] == '{' && line[len(line)-1] == '}':
		return FormatJSON
	case isLogfmt(line):
		return FormatLogfmt
	default:
		return FormatPlain
	}
}

// isLogfmt reports whether line opens with at least two key=value pairs.
func isLogfmt(line string) bool {
	s := logfmtScanner{line: line}
	for n := 1; s.next(); n++ {
		if n == 2 {
			return true
		}
	}
	return false
}

// AutoParser picks a parser per line, so mixed streams (a JSON service
// interleaved with plain panics, say) decode line by line.
type AutoParser struct {
	json   JSONParser
	logfmt LogfmtParser
	plain  PlainParser
}

// NewAutoParser creates a parser that handles mixed formats.
func NewAutoParser() *AutoParser {
	return &AutoParser{}
}

// Parse detects the line's format and parses it accordingly.
func (a *AutoParser) Parse(line string) Record {
	switch detectLine(line) {
	case FormatJSON:
		return a.json.Parse(line)
	case FormatLogfmt:
		return a.logfmt.Parse(line)
	default:
		return a.plain.Parse(line)
	}
}
