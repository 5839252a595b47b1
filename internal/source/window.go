package source

import (
	"context"
	"fmt"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

// checkEvery is how many decoded records pass between cancellation checks
// inside the scanning loops.
const checkEvery = 1024

// loadTailWindow decodes the stream from its start and keeps the newest
// records that begin within the last budget bytes of a size-byte file, at
// most limit of them. Records before the window are decoded and discarded
// rather than seeking into the middle of one.
//
// On a decode error the records gathered so far are returned with the error.
func loadTailWindow(ctx context.Context, dec parser.Decoder, size, budget int64, limit int) ([]parser.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	threshold := size - budget
	if threshold < 0 {
		threshold = 0
	}

	ring := make([]parser.Record, limit)
	count, idx, seen := 0, 0, 0
	var decodeErr error
	for {
		ok, err := dec.MoveNext()
		if err != nil {
			decodeErr = err
			break
		}
		if !ok {
			break
		}
		seen++
		if seen%checkEvery == 0 && ctx.Err() != nil {
			decodeErr = ctx.Err()
			break
		}
		rec := dec.Current()
		if rec.Offset < threshold {
			continue
		}
		ring[idx] = rec
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}

	records := make([]parser.Record, count)
	if count == limit {
		for i := 0; i < count; i++ {
			records[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(records, ring[:count])
	}
	return records, decodeErr
}

// ReadTail runs a one-shot tail window load over the file at path using
// cfg's budget, record cap and decoder.
func ReadTail(ctx context.Context, path string, cfg FileConfig) ([]parser.Record, error) {
	cfg = cfg.withDefaults()
	f, err := openShared(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	records, err := loadTailWindow(ctx, cfg.NewDecoder(f), info.Size(), cfg.TailBytes, cfg.TailRecords)
	if err != nil {
		return records, fmt.Errorf("reading tail of %s: %w", path, err)
	}
	return records, nil
}
