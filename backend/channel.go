// Package backend provides the uniform byte channel abstraction that
// every layer of the archive stack (slice manager, cipher, compressor,
// escape framing) implements and composes over, grounded on
// github.com/diskfs/go-diskfs's backend.Storage/SubStorage interfaces and
// generalised to the read/write/seek/size/crc surface §4.1 requires.
package backend

import (
	"errors"
	"io"
)

// Mode describes how a Channel was opened.
type Mode int

const (
	ReadOnly Mode = iota
	WriteOnly
	ReadWrite
)

// Direction is the polarity of a skip, for Skippable queries.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// ErrNotSeekable is returned by Skip/SkipToEOF when the channel does not
// support random access (piped mode).
var ErrNotSeekable = errors.New("backend: channel is not seekable")

// Channel is the uniform surface every stack layer implements and
// composes over by holding one inner Channel (owning or borrowing).
type Channel interface {
	io.Reader
	io.Writer

	// Mode reports how the channel was opened.
	Mode() Mode

	// Skip seeks to an absolute offset from the start of the logical
	// stream. Returns ErrNotSeekable in piped mode.
	Skip(absolute int64) error

	// SkipToEOF seeks to the end of the logical stream.
	SkipToEOF() error

	// SkipRelative seeks by a relative offset from the current position.
	SkipRelative(delta int64) error

	// CurrentPosition returns the current logical offset.
	CurrentPosition() (int64, error)

	// Skippable reports whether a seek of `amount` bytes in `dir` can be
	// satisfied without re-reading/re-writing the upstream layers (e.g. a
	// compressor mid-run cannot skip backward without decompressing from
	// the start of the run).
	Skippable(dir Direction, amount int64) bool

	// SyncWrite flushes any buffered writes to the underlying resource
	// without ending a logical unit (unlike Terminate, which is final).
	SyncWrite() error

	// Terminate releases layer-specific state (e.g. flushing a
	// compression run, writing a trailing CRC). It is idempotent and
	// must be callable more than once and before destruction; calling it
	// must never itself panic.
	Terminate() error
}

// CRCReader is implemented by channels that can report a running CRC
// between ResetCRC and the next call, per §4.1 "CRC attachment".
type CRCReader interface {
	ResetCRC(width int)
	GetCRC() []byte
}
