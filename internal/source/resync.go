package source

import (
	"context"
	"time"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

// resync scans a freshly opened stream for the first record stamped strictly
// after last, silently discarding everything up to it. found is false when
// the stream ran out first; the decoder is then at the end of the readable
// data and following continues from there.
func resync(ctx context.Context, dec parser.Decoder, last time.Time) (rec parser.Record, found bool, err error) {
	for n := 1; ; n++ {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return parser.Record{}, false, err
			}
		}
		ok, err := dec.MoveNext()
		if err != nil {
			return parser.Record{}, false, err
		}
		if !ok {
			return parser.Record{}, false, nil
		}
		if cur := dec.Current(); cur.Timestamp.After(last) {
			return cur, true, nil
		}
	}
}
