package source

import (
	"time"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

// Cursor is the resumption state of one session. LastEmitted only ever moves
// forward; it is the key for duplicate detection and for resync after a
// re-open. Offset is informational: the stream position after the last
// accepted record in the current handle, reported in diagnostics and never
// used to seek.
type Cursor struct {
	LastEmitted time.Time
	Offset      int64
	set         bool
}

// Empty reports whether nothing has been delivered yet in this session.
func (c *Cursor) Empty() bool { return !c.set }

// Accepts reports whether rec is new relative to the cursor: strictly newer,
// or stamped the same as the last delivered record with a non-empty body.
func (c *Cursor) Accepts(rec parser.Record) bool {
	if !c.set {
		return true
	}
	if rec.Timestamp.After(c.LastEmitted) {
		return true
	}
	return rec.Timestamp.Equal(c.LastEmitted) && rec.Body() != ""
}

// Advance records rec as delivered, with offset as the position after it.
func (c *Cursor) Advance(rec parser.Record, offset int64) {
	if !c.set || rec.Timestamp.After(c.LastEmitted) {
		c.LastEmitted = rec.Timestamp
	}
	c.set = true
	c.Offset = offset
}

// Invalidate drops the offset hint; offsets do not survive a re-open.
func (c *Cursor) Invalidate() { c.Offset = 0 }
