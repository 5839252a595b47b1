package parser

import "strings"

// LogfmtParser parses key=value lines.
type LogfmtParser struct{}

// Parse lifts the first occurrence of each well-known key into the Record;
// repeats and every other pair land in Fields.
func (p *LogfmtParser) Parse(line string) Record {
	rec := Record{
		Raw:    line,
		Format: FormatLogfmt,
		Fields: make(map[string]string),
	}

	var seen [len(roleKeys)]bool
	s := logfmtScanner{line: strings.TrimSpace(line)}
	for s.next() {
		r := roleOf(s.key)
		if r != roleNone && !seen[r] && rec.lift(r, s.value) {
			seen[r] = true
			continue
		}
		rec.Fields[s.key] = s.value
	}
	return rec
}

var logfmtUnescaper = strings.NewReplacer(`\"`, `"`, `\\`, `\`)

// logfmtScanner walks the key=value pairs of a line. A quoted value may
// hold spaces and backslash escapes; an unterminated quote runs to the end
// of the line. Scanning stops at the first token that is not a pair.
type logfmtScanner struct {
	line  string
	pos   int
	key   string
	value string
}

func (s *logfmtScanner) next() bool {
	line, i := s.line, s.pos
	for i < len(line) && isBlank(line[i]) {
		i++
	}

	start := i
	for i < len(line) && line[i] != '=' && !isBlank(line[i]) {
		i++
	}
	if i >= len(line) || line[i] != '=' || i == start {
		s.pos = len(line)
		return false
	}
	s.key = line[start:i]
	i++ // '='

	if i < len(line) && line[i] == '"' {
		i++
		vstart := i
		for i < len(line) && line[i] != '"' {
			if line[i] == '\\' {
				i++
			}
			i++
		}
		i = min(i, len(line))
		s.value = logfmtUnescaper.Replace(line[vstart:i])
		if i < len(line) {
			i++ // closing quote
		}
	} else {
		vstart := i
		for i < len(line) && !isBlank(line[i]) {
			i++
		}
		s.value = line[vstart:i]
	}
	s.pos = i
	return true
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }
