package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

const (
	// DefaultBufferSize is the default capacity of the batches channel.
	DefaultBufferSize = 64

	// DropOldest discards the oldest unread batch when the buffer is full.
	DropOldest BackpressureStrategy = iota
	// Block waits until a reader consumes a batch before reading more input.
	Block
)

// BackpressureStrategy controls behaviour when the batches channel is full.
type BackpressureStrategy int

// StdinOption configures a StdinSource.
type StdinOption func(*StdinSource)

// WithBufferSize sets the capacity of the batches channel.
func WithBufferSize(n int) StdinOption {
	return func(s *StdinSource) { s.bufSize = n }
}

// WithBackpressure sets the backpressure strategy.
func WithBackpressure(bp BackpressureStrategy) StdinOption {
	return func(s *StdinSource) { s.backpressure = bp }
}

// WithReader overrides the default stdin reader (useful for testing).
func WithReader(r io.Reader) StdinOption {
	return func(s *StdinSource) { s.reader = r }
}

// WithMaxBatch caps the records in one delivered Batch.
func WithMaxBatch(n int) StdinOption {
	return func(s *StdinSource) { s.maxBatch = n }
}

// WithLogger sets the logger used for read failures.
func WithLogger(l *zap.Logger) StdinOption {
	return func(s *StdinSource) { s.log = l }
}

// StdinSource reads log records from standard input. It is designed to work
// with piped input such as:
//
//	kubectl logs -f pod | logtrail
//	cat app.log | logtrail
//	docker logs -f container | logtrail
type StdinSource struct {
	reader       io.Reader
	batches      chan Batch
	status       chan Status
	bufSize      int
	maxBatch     int
	backpressure BackpressureStrategy
	log          *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStdinSource creates a new StdinSource with the given options.
func NewStdinSource(opts ...StdinOption) *StdinSource {
	s := &StdinSource{
		reader:       os.Stdin,
		bufSize:      DefaultBufferSize,
		maxBatch:     DefaultMaxBatch,
		backpressure: Block,
		log:          zap.NewNop(),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.bufSize <= 0 {
		s.bufSize = 1
	}
	if s.maxBatch <= 0 {
		s.maxBatch = DefaultMaxBatch
	}
	s.batches = make(chan Batch, s.bufSize)
	s.status = make(chan Status, 4)
	return s
}

// IsPipe reports whether stdin appears to be a pipe (not a terminal).
func IsPipe() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}

func (s *StdinSource) Batches() <-chan Batch { return s.batches }
func (s *StdinSource) Status() <-chan Status { return s.status }
func (s *StdinSource) Done() <-chan struct{} { return s.done }

// Start launches the reader goroutine. Reading ends at EOF, on a read error
// or when ctx is cancelled; both channels are closed afterwards.
func (s *StdinSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return nil
}

func (s *StdinSource) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.status)
	defer close(s.batches)

	s.setStatus(Status{State: StateLive, Text: "Reading stdin"})
	err := s.read(ctx)
	if err != nil && ctx.Err() == nil {
		s.log.Warn("stdin read failed", zap.Error(err))
		s.setStatus(Status{State: StateStopped, Text: fmt.Sprintf("Error: %v", err), Err: err})
		return
	}
	s.setStatus(Status{State: StateStopped, Text: "Stopped"})
}

// read decodes until EOF. A batch goes out whenever the decoder has nothing
// left buffered, so records are not held back while the next read blocks.
func (s *StdinSource) read(ctx context.Context) error {
	dec := parser.NewLineDecoder(s.reader, nil)
	var batch []parser.Record
	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		ok := s.emit(ctx, Batch{Kind: BatchLive, Records: batch})
		batch = nil
		return ok
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := dec.MoveNext()
		if err != nil {
			flush()
			return fmt.Errorf("stdin read error: %w", err)
		}
		if !ok {
			if dec.Finish() {
				batch = append(batch, dec.Current())
			}
			flush()
			return nil
		}
		batch = append(batch, dec.Current())
		if len(batch) >= s.maxBatch || dec.Buffered() == 0 {
			if !flush() {
				return ctx.Err()
			}
		}
	}
}

// emit sends a batch, respecting the backpressure strategy.
func (s *StdinSource) emit(ctx context.Context, b Batch) bool {
	switch s.backpressure {
	case DropOldest:
		select {
		case s.batches <- b:
		default:
			select {
			case <-s.batches:
			default:
			}
			select {
			case s.batches <- b:
			case <-ctx.Done():
				return false
			}
		}
	default: // Block
		select {
		case s.batches <- b:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// setStatus never blocks; a consumer that ignores status loses nothing else.
func (s *StdinSource) setStatus(st Status) {
	select {
	case s.status <- st:
	default:
	}
}

// Stop cancels reading and waits for the reader goroutine to finish. The
// goroutine only notices once the pending read returns, so closing the
// underlying pipe is what unblocks it when no input arrives.
func (s *StdinSource) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-s.done
	return nil
}
