// Package escape implements the escape-mark framing layer: it injects
// typed synchronisation markers into the byte stream that survive
// compression (written with compression suspended) and byte-stuffs any
// literal occurrence of the escape prefix in the underlying data, per
// §4.5. Grounded on the original's `escape.hpp`/`escape_catalogue.hpp`
// (the "escape sequence before a mark byte" framing scheme).
package escape

import (
	"io"

	"github.com/edrusb/darchive/backend"
	"github.com/edrusb/darchive/errs"
)

// MarkType tags what kind of synchronisation point a mark records.
type MarkType byte

const (
	MarkFile MarkType = iota
	MarkEA
	MarkFSA
	MarkFileCRC
	MarkEACRC
	MarkFSACRC
	MarkDeltaSig
	MarkDirty
	MarkChanged
	MarkFailedBackup
	MarkCatalogue
	MarkDataName
)

// escapeByte is the rare prefix byte; any literal occurrence in the
// data is stuffed as two consecutive escapeBytes. A single escapeByte
// followed by any other byte is a mark, tagged by that following byte.
const escapeByte = 0xFE

// suspendable is implemented by the compression layer this package
// normally wraps; marks and their surrounding escape bytes are always
// written/read with compression suspended so they can be located
// without decompressing (§4.5's "survive compression").
type suspendable interface {
	Suspend() error
	Resume()
}

// Layer wraps inner (normally a *compress.Layer), escaping/unescaping
// data and exposing the mark-aware read/write primitives §4.5 wants.
type Layer struct {
	inner backend.Channel
	mode  backend.Mode

	// pendingMark holds a mark detected mid-Read that the caller has not
	// yet consumed via NextToReadIsMark/SkipToNextMark.
	pendingMark    MarkType
	havePending    bool
}

// NewLayer wraps inner.
func NewLayer(inner backend.Channel) *Layer {
	return &Layer{inner: inner, mode: inner.Mode()}
}

func (l *Layer) Mode() backend.Mode { return l.mode }

// SuspendCompression and ResumeCompression let a caller bracket a run of
// file data that must bypass the compressor entirely (a file excluded by
// the compression mask, or below the minimum-size-to-compress
// threshold), the same suspend/resume the mark-writing path uses
// internally for marks themselves.
func (l *Layer) SuspendCompression() error { return l.suspend() }
func (l *Layer) ResumeCompression()        { l.resume() }

func (l *Layer) suspend() error {
	if s, ok := l.inner.(suspendable); ok {
		return s.Suspend()
	}
	return nil
}

func (l *Layer) resume() {
	if s, ok := l.inner.(suspendable); ok {
		s.Resume()
	}
}

func (l *Layer) readRawByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(l.inner, b[:])
	return b[0], err
}

// Read delivers unstuffed data bytes. It stops short (returning
// (n, nil) with n possibly 0, never io.EOF for a mark) the moment it
// would otherwise consume a mark, so the caller can observe the mark
// via NextToReadIsMark before any data past it is read.
func (l *Layer) Read(p []byte) (int, error) {
	if l.havePending {
		return 0, nil
	}
	total := 0
	for total < len(p) {
		b, err := l.readRawByte()
		if err != nil {
			return total, err
		}
		if b != escapeByte {
			p[total] = b
			total++
			continue
		}
		b2, err := l.readRawByte()
		if err != nil {
			return total, err
		}
		if b2 == escapeByte {
			p[total] = escapeByte
			total++
			continue
		}
		l.pendingMark = MarkType(b2)
		l.havePending = true
		return total, nil
	}
	return total, nil
}

// Write stuffs any literal escapeByte in p.
func (l *Layer) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == escapeByte {
			if _, err := l.inner.Write([]byte{escapeByte, escapeByte}); err != nil {
				return 0, err
			}
			continue
		}
		if _, err := l.inner.Write([]byte{b}); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// AddMarkAtCurrentPosition writes a mark of type t at the current
// write position, suspending compression around it so it survives
// intact regardless of the compressed run in progress.
func (l *Layer) AddMarkAtCurrentPosition(t MarkType) error {
	if err := l.suspend(); err != nil {
		return errs.Wrap(err, "escape.AddMarkAtCurrentPosition: suspending compression")
	}
	defer l.resume()
	_, err := l.inner.Write([]byte{escapeByte, byte(t)})
	return err
}

// NextToReadIsMark reports whether the very next thing to read is a
// mark of type t, without consuming any data. It is only accurate once
// all data before the mark has actually been read (Read stops short of
// a mark on its own, so a caller alternating Read/NextToReadIsMark
// naturally lands here right after the last data byte).
func (l *Layer) NextToReadIsMark(t MarkType) (bool, error) {
	if !l.havePending {
		var probe [1]byte
		n, err := l.Read(probe[:])
		if n > 0 {
			return false, errs.New(errs.KindBug, "escape.NextToReadIsMark: data remained before the next mark")
		}
		if err != nil {
			return false, err
		}
	}
	return l.havePending && l.pendingMark == t, nil
}

// SkipToNextMark advances past data (forward=true, the only supported
// direction; backward recovery is handled by the archive façade via a
// fresh Skip to a remembered offset) until a mark of type t is found,
// consuming it, and reports whether one was found before EOF.
func (l *Layer) SkipToNextMark(t MarkType, forward bool) (bool, error) {
	if !forward {
		return false, errs.New(errs.KindFeature, "escape.SkipToNextMark: backward scan not supported, reposition via Skip instead")
	}
	for {
		if l.havePending {
			found := l.pendingMark == t
			l.havePending = false
			if found {
				return true, nil
			}
			continue
		}
		var buf [4096]byte
		n, err := l.Read(buf[:])
		if n == 0 && err != nil {
			if err == io.EOF {
				return false, nil
			}
			return false, err
		}
	}
}

func (l *Layer) Terminate() error {
	if err := l.suspend(); err != nil {
		return err
	}
	return l.inner.Terminate()
}

func (l *Layer) Skip(absolute int64) error {
	l.havePending = false
	return l.inner.Skip(absolute)
}

func (l *Layer) SkipToEOF() error {
	l.havePending = false
	return l.inner.SkipToEOF()
}

func (l *Layer) SkipRelative(delta int64) error {
	pos, err := l.CurrentPosition()
	if err != nil {
		return err
	}
	return l.Skip(pos + delta)
}

func (l *Layer) CurrentPosition() (int64, error) { return l.inner.CurrentPosition() }

func (l *Layer) Skippable(dir backend.Direction, amount int64) bool {
	return l.inner.Skippable(dir, amount)
}

func (l *Layer) SyncWrite() error { return l.inner.SyncWrite() }
