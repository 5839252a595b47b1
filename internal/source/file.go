package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

// Defaults for FileConfig fields left at zero.
const (
	DefaultTailBytes      = 2 * 1024 * 1024
	DefaultTailRecords    = 2000
	DefaultPollInterval   = time.Second
	DefaultStallThreshold = 2
	DefaultRetryDelay     = 2 * time.Second
	DefaultMaxBatch       = 2000
)

// ErrAlreadyStarted is returned by Start on a source that is running.
var ErrAlreadyStarted = errors.New("source already started")

// FileConfig holds configuration for a file source.
type FileConfig struct {
	// TailBytes bounds how far back from the end the first attach reads.
	TailBytes int64
	// TailRecords caps the records kept from the tail window.
	TailRecords int
	// PollInterval is the wait between empty follow cycles.
	PollInterval time.Duration
	// StallThreshold is how many poll intervals with unconsumed bytes and no
	// accepted record are tolerated before the file is re-opened.
	StallThreshold int
	// RetryDelay is the wait after a failed open or a read error.
	RetryDelay time.Duration
	// MaxBatch caps the records in one delivered Batch.
	MaxBatch int
	// Watch wakes the follow loop on fsnotify events between polls.
	Watch bool

	NewDecoder parser.NewDecoderFunc
	Logger     *zap.Logger
	Metrics    *Metrics
}

// DefaultFileConfig returns the stock tunables with file watching enabled.
func DefaultFileConfig() FileConfig {
	cfg := FileConfig{Watch: true}
	return cfg.withDefaults()
}

func (c FileConfig) withDefaults() FileConfig {
	if c.TailBytes <= 0 {
		c.TailBytes = DefaultTailBytes
	}
	if c.TailRecords <= 0 {
		c.TailRecords = DefaultTailRecords
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = DefaultStallThreshold
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultMaxBatch
	}
	if c.NewDecoder == nil {
		c.NewDecoder = parser.DecodeLines
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// openError marks a failure to open the file, as opposed to one while
// reading it.
type openError struct{ err error }

func (e *openError) Error() string { return e.err.Error() }
func (e *openError) Unwrap() error { return e.err }

// FileSource follows one log file that another process is appending to.
// It keeps delivering across rotation, truncation, stalls and failed opens
// until it is stopped, resuming after each re-open from the last delivered
// record's timestamp.
type FileSource struct {
	path    string
	cfg     FileConfig
	log     *zap.Logger
	metrics sessionMetrics

	batches *outbox[Batch]
	status  *outbox[Status]
	reopen  chan struct{}

	// cursor and stalls are only touched by the run goroutine.
	cursor Cursor
	stalls int // stall reopens since the last accepted record

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewFileSource creates a new file source for path.
func NewFileSource(path string, cfg FileConfig) *FileSource {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cfg = cfg.withDefaults()
	return &FileSource{
		path:    path,
		cfg:     cfg,
		log:     cfg.Logger.With(zap.String("path", path)),
		metrics: cfg.Metrics.forPath(path),
		batches: newOutbox[Batch](64),
		status:  newOutbox[Status](16),
		reopen:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (fs *FileSource) Batches() <-chan Batch { return fs.batches.out }
func (fs *FileSource) Status() <-chan Status { return fs.status.out }
func (fs *FileSource) Done() <-chan struct{} { return fs.done }
func (fs *FileSource) Path() string          { return fs.path }

// Start launches the follow goroutine and returns immediately.
func (fs *FileSource) Start(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, fs.cancel = context.WithCancel(ctx)

	fs.wg.Add(3)
	go func() {
		defer fs.wg.Done()
		fs.batches.pump(ctx)
	}()
	go func() {
		defer fs.wg.Done()
		fs.status.pump(ctx)
	}()
	go func() {
		defer fs.wg.Done()
		fs.run(ctx)
	}()
	go func() {
		fs.wg.Wait()
		close(fs.done)
	}()
	return nil
}

// Stop cancels following and waits until the file handle is released and
// both channels are closed.
func (fs *FileSource) Stop() error {
	fs.mu.Lock()
	cancel := fs.cancel
	fs.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-fs.done
	return nil
}

// Reopen asks the engine to close and re-open the file at its next poll.
func (fs *FileSource) Reopen() {
	select {
	case fs.reopen <- struct{}{}:
	default:
	}
}

// run is the supervisor loop. Every pass owns one open handle.
func (fs *FileSource) run(ctx context.Context) {
	defer fs.batches.close()
	defer fs.status.close()
	defer fs.publish(StateStopped, "Stopped", nil)

	wake := fs.watch(ctx)

	for ctx.Err() == nil {
		fs.publish(StateInitializing, "Initializing…", nil)
		err := fs.cycle(ctx, wake)
		if ctx.Err() != nil {
			return
		}

		if reason := reopenReason(err); reason != "" {
			fs.metrics.reopen(reason)
			fs.log.Debug("reopening", zap.String("reason", reason), zap.Error(err))
			if reason == reasonStall {
				fs.stalls++
				if fs.stalls == 2 {
					fs.log.Info("decoder keeps stalling on the same bytes, likely an unterminated last line; reopening every stall interval until it completes",
						zap.Duration("interval", time.Duration(fs.cfg.StallThreshold+1)*fs.cfg.PollInterval))
				}
			}
			continue
		}

		var oe *openError
		if errors.As(err, &oe) {
			fs.metrics.openFailed()
		} else {
			fs.metrics.reopen(reasonError)
		}
		fs.log.Warn("follow cycle failed", zap.Error(err), zap.Duration("retry_in", fs.cfg.RetryDelay))
		fs.publish(StateRetrying, fmt.Sprintf("Error: %v. Retrying in %s…", err, fs.cfg.RetryDelay), err)
		if !sleep(ctx, fs.cfg.RetryDelay) {
			return
		}
	}
}

func reopenReason(err error) string {
	switch {
	case errors.Is(err, errStalled):
		return reasonStall
	case errors.Is(err, errRotated):
		return reasonRotate
	case errors.Is(err, errTruncated):
		return reasonTruncate
	case errors.Is(err, errReopenRequested):
		return reasonRequest
	default:
		return ""
	}
}

// cycle opens the file, establishes the starting point and follows until
// something forces a re-open. The handle is closed on every return path.
func (fs *FileSource) cycle(ctx context.Context, wake <-chan struct{}) error {
	f, err := openShared(fs.path)
	if err != nil {
		return &openError{err: err}
	}
	defer f.Close()

	fs.cursor.Invalidate()
	dec := fs.cfg.NewDecoder(f)

	if fs.cursor.Empty() {
		fs.publish(StateScanning, "Scanning file…", nil)
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", fs.path, err)
		}
		records, err := loadTailWindow(ctx, dec, info.Size(), fs.cfg.TailBytes, fs.cfg.TailRecords)
		// The window goes through the same gate as live records, so a record
		// stamped before one already in it is dropped and LastEmitted ends
		// at the window's newest timestamp.
		kept := records[:0]
		for _, rec := range records {
			if fs.accept(rec, dec.Offset()) {
				kept = append(kept, rec)
			}
		}
		fs.deliver(BatchTail, kept)
		if err != nil {
			return fmt.Errorf("loading tail window: %w", err)
		}
		fs.publish(StateLive, "Live", nil)
	} else {
		fs.publish(StateResyncing, "Resynchronizing…", nil)
		rec, found, err := resync(ctx, dec, fs.cursor.LastEmitted)
		if err != nil {
			return fmt.Errorf("resynchronizing: %w", err)
		}
		if found && fs.accept(rec, dec.Offset()) {
			fs.deliver(BatchResync, []parser.Record{rec})
		}
		fs.publish(StateLive, "Live (Resumed)", nil)
	}

	return fs.follow(ctx, f, dec, wake)
}

// deliver splits records into batches of at most MaxBatch.
func (fs *FileSource) deliver(kind BatchKind, records []parser.Record) {
	for len(records) > 0 {
		n := min(len(records), fs.cfg.MaxBatch)
		fs.emit(Batch{Kind: kind, Records: records[:n:n]})
		records = records[n:]
	}
}

func (fs *FileSource) emit(b Batch) {
	fs.batches.push(b)
	fs.metrics.delivered(b)
}

func (fs *FileSource) publish(state State, text string, err error) {
	fs.log.Debug("state change", zap.Stringer("state", state), zap.String("status", text))
	fs.status.push(Status{State: state, Text: text, Err: err})
}
