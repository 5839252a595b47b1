package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

// Reasons for leaving the follow loop that call for an immediate re-open
// rather than a retry delay.
var (
	errStalled         = errors.New("decoder stalled on unconsumed bytes")
	errRotated         = errors.New("file was replaced")
	errTruncated       = errors.New("file was truncated")
	errReopenRequested = errors.New("reopen requested")
)

// stallDetector counts consecutive poll intervals without an accepted record
// during which the file held bytes the decoder had not consumed.
type stallDetector struct {
	threshold int
	count     int
}

// observe records one such interval and reports whether the decoder should be
// considered stuck.
func (s *stallDetector) observe(size, consumed int64) bool {
	if size > consumed {
		s.count++
	} else {
		s.count = 0
	}
	return s.count > s.threshold
}

func (s *stallDetector) reset() { s.count = 0 }

// follow is the steady-state loop. It returns only with an error: ctx's on
// cancellation, one of the reopen sentinels, or an I/O failure.
func (fs *FileSource) follow(ctx context.Context, f *os.File, dec parser.Decoder, wake <-chan struct{}) error {
	stall := stallDetector{threshold: fs.cfg.StallThreshold}
	observed := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		accepted, err := fs.drain(ctx, dec)
		if err != nil {
			return fmt.Errorf("following %s: %w", fs.path, err)
		}
		if accepted > 0 {
			stall.reset()
			observed = time.Now()
			continue
		}

		if err := fs.checkIdentity(f, dec.Offset()); err != nil {
			return err
		}

		// Stalls are counted once per elapsed poll interval, whether the
		// wait ran out or a file event ended it early.
		if time.Since(observed) >= fs.cfg.PollInterval {
			observed = time.Now()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat %s: %w", fs.path, err)
			}
			if stall.observe(info.Size(), dec.Offset()) {
				fs.log.Debug("decoder stalled, forcing reopen",
					zap.Int64("size", info.Size()),
					zap.Int64("consumed", dec.Offset()),
					zap.Int64("last_delivered_at", fs.cursor.Offset),
					zap.Int("empty_cycles", stall.count))
				return errStalled
			}
		}

		if err := fs.wait(ctx, wake); err != nil {
			return err
		}
	}
}

// drain pulls records until the decoder has nothing more, delivering the
// accepted ones in batches of at most MaxBatch.
func (fs *FileSource) drain(ctx context.Context, dec parser.Decoder) (int, error) {
	var batch []parser.Record
	flush := func() {
		if len(batch) > 0 {
			fs.emit(Batch{Kind: BatchLive, Records: batch})
			batch = nil
		}
	}
	defer flush()

	accepted := 0
	for n := 1; ; n++ {
		if n%checkEvery == 0 && ctx.Err() != nil {
			return accepted, nil
		}
		ok, err := dec.MoveNext()
		if err != nil {
			return accepted, err
		}
		if !ok {
			return accepted, nil
		}

		rec := dec.Current()
		if !fs.accept(rec, dec.Offset()) {
			continue
		}
		batch = append(batch, rec)
		accepted++
		if len(batch) >= fs.cfg.MaxBatch {
			flush()
		}
	}
}

// accept applies the cursor's duplicate guard to rec and, when it passes,
// advances the cursor. Records stamped before the last delivered one are
// dropped, which keeps delivery in non-decreasing timestamp order.
func (fs *FileSource) accept(rec parser.Record, offset int64) bool {
	if !fs.cursor.Accepts(rec) {
		fs.metrics.duplicate()
		return false
	}
	fs.cursor.Advance(rec, offset)
	fs.stalls = 0
	return true
}

// checkIdentity compares the open handle with what is now at the path.
func (fs *FileSource) checkIdentity(f *os.File, consumed int64) error {
	cur, err := os.Stat(fs.path)
	if err != nil {
		return fmt.Errorf("%w: %v", errRotated, err)
	}
	held, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", fs.path, err)
	}
	if !os.SameFile(held, cur) {
		return errRotated
	}
	if cur.Size() < consumed {
		return errTruncated
	}
	return nil
}

// wait suspends for one poll interval or until a file event arrives.
func (fs *FileSource) wait(ctx context.Context, wake <-chan struct{}) error {
	t := time.NewTimer(fs.cfg.PollInterval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-fs.reopen:
		return errReopenRequested
	case <-wake:
		return nil
	case <-t.C:
		return nil
	}
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
