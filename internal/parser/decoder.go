package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// MaxRecordBytes caps how much of an unterminated line the LineDecoder
// buffers before emitting it as a record anyway.
const MaxRecordBytes = 1024 * 1024

// Decoder walks a byte stream one record at a time. It only moves forward.
type Decoder interface {
	// MoveNext advances to the next complete record. It returns false with a
	// nil error when nothing more can be decoded right now; a later call may
	// succeed once the stream has grown. Errors are reserved for I/O faults.
	MoveNext() (bool, error)
	// Current returns the record MoveNext last advanced to.
	Current() Record
	// Offset returns the number of stream bytes consumed through the last
	// complete record.
	Offset() int64
}

// NewDecoderFunc constructs a Decoder over a stream positioned at its start.
type NewDecoderFunc func(r io.Reader) Decoder

// LineDecoder decodes newline-terminated records with a Parser. A trailing
// line without its newline is held back until the writer finishes it.
type LineDecoder struct {
	r       *bufio.Reader
	parser  Parser
	pending []byte
	offset  int64
	cur     Record
	last    time.Time
}

// NewLineDecoder returns a LineDecoder that parses each line with p. A nil
// parser selects the per-line AutoParser.
func NewLineDecoder(r io.Reader, p Parser) *LineDecoder {
	if p == nil {
		p = NewAutoParser()
	}
	return &LineDecoder{
		r:      bufio.NewReaderSize(r, 64*1024),
		parser: p,
	}
}

// DecodeLines is the default NewDecoderFunc.
func DecodeLines(r io.Reader) Decoder {
	return NewLineDecoder(r, nil)
}

// MoveNext implements Decoder.
func (d *LineDecoder) MoveNext() (bool, error) {
	for {
		chunk, err := d.r.ReadSlice('\n')
		d.pending = append(d.pending, chunk...)

		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			if len(d.pending) < MaxRecordBytes {
				continue
			}
		case errors.Is(err, io.EOF):
			return false, nil
		default:
			return false, fmt.Errorf("decoding records: %w", err)
		}

		if d.take() {
			return true, nil
		}
	}
}

// Finish decodes a final unterminated line once the caller knows the stream
// has ended for good. It reports false when nothing was held back.
func (d *LineDecoder) Finish() bool {
	if len(d.pending) == 0 {
		return false
	}
	return d.take()
}

// take turns the pending bytes into the current record. Blank lines are
// consumed without producing one.
func (d *LineDecoder) take() bool {
	start := d.offset
	d.offset += int64(len(d.pending))
	line := strings.TrimRight(string(d.pending), "\r\n")
	d.pending = d.pending[:0]

	if strings.TrimSpace(line) == "" {
		return false
	}

	rec := d.parser.Parse(line)
	rec.Offset = start
	// Continuation lines (stack traces and the like) carry no timestamp
	// of their own and sort with the record before them.
	if rec.Timestamp.IsZero() {
		rec.Timestamp = d.last
	} else {
		d.last = rec.Timestamp
	}
	d.cur = rec
	return true
}

// Current implements Decoder.
func (d *LineDecoder) Current() Record { return d.cur }

// Offset implements Decoder.
func (d *LineDecoder) Offset() int64 { return d.offset }

// Buffered reports how many bytes are already read from the underlying
// stream but not yet decoded. Zero means the next MoveNext will hit the
// stream itself.
func (d *LineDecoder) Buffered() int { return d.r.Buffered() }
