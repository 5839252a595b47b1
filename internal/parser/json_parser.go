package parser

import (
	"encoding/json"
	"strings"
)

// JSONParser parses one JSON object per line.
type JSONParser struct{}

// Parse lifts well-known keys into the Record's fields, preferring the
// spellings listed first in roleKeys. All other keys, including spellings
// that lost to a preferred one, land in Fields.
func (p *JSONParser) Parse(line string) Record {
	rec := Record{
		Raw:    line,
		Format: FormatJSON,
		Fields: make(map[string]string),
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &raw); err != nil {
		rec.Message = line
		return rec
	}

	byLower := make(map[string]string, len(raw))
	for k := range raw {
		byLower[strings.ToLower(k)] = k
	}

	lifted := make(map[string]bool, len(roleKeys))
	for r, spellings := range roleKeys {
		for _, spelling := range spellings {
			k, ok := byLower[spelling]
			if !ok {
				continue
			}
			if rec.lift(role(r), raw[k]) {
				lifted[k] = true
				break
			}
		}
	}

	for k, v := range raw {
		if !lifted[k] {
			rec.Fields[k] = stringify(v)
		}
	}
	return rec
}
