// Package source provides the log sources logtrail reads from: a live file
// follower that survives rotation, truncation and stalls, and a stdin reader
// for piped input.
package source

import (
	"context"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

// BatchKind says which stage of a session produced a Batch.
type BatchKind int

const (
	// BatchTail holds records from the initial tail window.
	BatchTail BatchKind = iota
	// BatchResync holds the first record found after a re-open.
	BatchResync
	// BatchLive holds records picked up while following the file.
	BatchLive
)

func (k BatchKind) String() string {
	switch k {
	case BatchTail:
		return "tail"
	case BatchResync:
		return "resync"
	default:
		return "live"
	}
}

// Batch is an ordered group of records delivered in one notification. The
// receiver owns Records; the source never touches a delivered batch again.
type Batch struct {
	Kind    BatchKind
	Records []parser.Record
}

// State is the engine's position in its open/scan/follow cycle.
type State int

const (
	StateInitializing State = iota
	StateScanning
	StateResyncing
	StateLive
	StateRetrying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateScanning:
		return "scanning"
	case StateResyncing:
		return "resyncing"
	case StateLive:
		return "live"
	case StateRetrying:
		return "retrying"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is a human-readable progress update.
type Status struct {
	State State
	Text  string
	// Err is set for StateRetrying.
	Err error
}

// Source defines the interface for all log sources.
type Source interface {
	// Batches returns a channel that emits decoded records in order.
	Batches() <-chan Batch
	// Status returns a channel that emits state changes.
	Status() <-chan Status
	// Start begins reading/tailing.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the source. It is safe to call more than once.
	Stop() error
}
