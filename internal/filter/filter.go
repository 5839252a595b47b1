// Package filter selects records with boolean expressions such as
//
//	Level == "ERROR" && Contains(Message, "timeout")
//	Thread == "worker-3" || Fields.request_id == "abc"
//
// Expressions are compiled once with expr-lang and evaluated per record.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

// Env is the environment an expression is evaluated against.
type Env struct {
	Timestamp time.Time
	Level     string
	Message   string
	Thread    string
	Logger    string
	Process   string
	Raw       string
	Fields    map[string]string

	regex *regexCache
}

func newEnv(rec parser.Record, rc *regexCache) *Env {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return &Env{
		Timestamp: rec.Timestamp,
		Level:     rec.Level,
		Message:   rec.Message,
		Thread:    rec.Thread,
		Logger:    rec.Logger,
		Process:   rec.Process,
		Raw:       rec.Raw,
		Fields:    fields,
		regex:     rc,
	}
}

// Contains reports whether s contains sub, case-sensitively.
func (e *Env) Contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

// IContains is Contains ignoring case.
func (e *Env) IContains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Match reports whether the raw line matches the regular expression pattern.
// An invalid pattern never matches.
func (e *Env) Match(pattern string) bool {
	re := e.regex.get(pattern)
	return re != nil && re.MatchString(e.Raw)
}

// Field returns the named extra field, or "" when absent.
func (e *Env) Field(key string) string {
	return e.Fields[key]
}

type regexCache struct {
	mu sync.Mutex
	m  map[string]*regexp.Regexp
}

func (c *regexCache) get(pattern string) *regexp.Regexp {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.m[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	c.m[pattern] = re
	return re
}

// Filter is a compiled expression.
type Filter struct {
	src     string
	program *vm.Program
	regex   *regexCache
}

// Compile parses and type-checks src. An empty expression yields a Filter
// that matches every record.
func Compile(src string) (*Filter, error) {
	f := &Filter{
		src:   strings.TrimSpace(src),
		regex: &regexCache{m: make(map[string]*regexp.Regexp)},
	}
	if f.src == "" {
		return f, nil
	}
	program, err := expr.Compile(f.src, expr.Env(&Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling filter %q: %w", f.src, err)
	}
	f.program = program
	return f, nil
}

// String returns the expression the filter was compiled from.
func (f *Filter) String() string { return f.src }

// Match reports whether rec satisfies the filter. Evaluation errors count as
// no match. A nil Filter matches everything.
func (f *Filter) Match(rec parser.Record) bool {
	if f == nil || f.program == nil {
		return true
	}
	out, err := expr.Run(f.program, newEnv(rec, f.regex))
	if err != nil {
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}

// Apply returns the records that satisfy the filter, in order. The input
// slice is never modified.
func (f *Filter) Apply(records []parser.Record) []parser.Record {
	if f == nil || f.program == nil {
		return records
	}
	out := make([]parser.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
