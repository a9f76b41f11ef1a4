// Package compress implements the compression layer: a backend.Channel
// wrapping another Channel that streams compress-on-write / decompress-
// on-read, with explicit run boundaries (FlushWrite ends a compressed
// run so the next bytes start a fresh one) and a suspend/resume gate for
// writing bytes uncompressed in between compressed regions (the escape
// layer's marks, the leading archive header, inline CRCs). Grounded on
// §4.4 and on the original's `compressor.hpp` wrapping a `generic_file`.
//
// Codec-specific work lives in the gzipcodec/lz4codec/xzcodec
// subpackages, selected by the archive header's compression-algo byte;
// this package only holds the Codec seam, the run/suspend state
// machine, and the Layer itself.
package compress

import (
	"io"

	"github.com/edrusb/darchive/backend"
	"github.com/edrusb/darchive/errs"
)

// Algo identifies a compression family, matching the archive header's
// compression-algo byte.
type Algo byte

const (
	AlgoNone Algo = iota
	AlgoGzip
	AlgoLZ4
	AlgoXZ
)

// CodecWriter is a compressor's write-side: a streaming sink that can
// be closed to end one compressed run without closing the underlying
// channel.
type CodecWriter interface {
	io.Writer
	Close() error
}

// Codec is the seam a concrete compression family implements.
type Codec interface {
	NewWriter(w io.Writer) (CodecWriter, error)
	NewReader(r io.Reader) (io.Reader, error)
}

// Layer wraps inner, compressing writes and decompressing reads
// through codec, except while suspended (Suspend/Resume), when bytes
// pass through to/from inner untouched.
type Layer struct {
	inner backend.Channel
	codec Codec
	mode  backend.Mode

	suspended bool

	w CodecWriter // lazily (re)opened on the first write of a run
	r io.Reader   // lazily (re)opened on the first read of a run
}

// NewLayer wraps inner with codec. A nil codec means AlgoNone: every
// byte passes through uncompressed, still through the same Suspend/
// Resume/FlushWrite bookkeeping so escape-mark framing works uniformly
// regardless of whether compression is actually enabled.
func NewLayer(inner backend.Channel, codec Codec) *Layer {
	return &Layer{inner: inner, codec: codec, mode: inner.Mode()}
}

func (l *Layer) Mode() backend.Mode { return l.mode }

// Suspend stops compressing/decompressing: subsequent Read/Write calls
// pass bytes straight through to inner until Resume. Any in-flight
// compressed run is ended first, exactly as FlushWrite would.
func (l *Layer) Suspend() error {
	if l.suspended {
		return nil
	}
	if err := l.FlushWrite(); err != nil {
		return err
	}
	l.r = nil
	l.suspended = true
	return nil
}

// Resume re-enables compression/decompression; the next Read/Write
// starts a fresh compressed run.
func (l *Layer) Resume() {
	l.suspended = false
}

// FlushWrite ends the current compressed write run, if one is open, so
// the next Write starts a new one. A no-op if nothing has been written
// since the last flush/suspend.
func (l *Layer) FlushWrite() error {
	if l.w == nil {
		return nil
	}
	w := l.w
	l.w = nil
	if err := w.Close(); err != nil {
		return errs.Wrap(err, "compress.Layer.FlushWrite")
	}
	return nil
}

func (l *Layer) Read(p []byte) (int, error) {
	if l.suspended || l.codec == nil {
		return l.inner.Read(p)
	}
	if l.r == nil {
		r, err := l.codec.NewReader(l.inner)
		if err != nil {
			return 0, errs.Wrap(err, "compress.Layer: opening codec reader")
		}
		l.r = r
	}
	return l.r.Read(p)
}

func (l *Layer) Write(p []byte) (int, error) {
	if l.suspended || l.codec == nil {
		return l.inner.Write(p)
	}
	if l.w == nil {
		w, err := l.codec.NewWriter(l.inner)
		if err != nil {
			return 0, errs.Wrap(err, "compress.Layer: opening codec writer")
		}
		l.w = w
	}
	return l.w.Write(p)
}

// Terminate flushes any open write run and terminates inner.
func (l *Layer) Terminate() error {
	if err := l.FlushWrite(); err != nil {
		return err
	}
	return l.inner.Terminate()
}

// Skip ends the current run and seeks inner to absolute, since a
// compressed/decompressed stream has no stable byte-for-byte relation
// to inner's offsets mid-run; callers needing positional stability
// across a seek must do so at a run boundary (the escape layer only
// ever seeks to a mark, which is always a run boundary).
func (l *Layer) Skip(absolute int64) error {
	if err := l.FlushWrite(); err != nil {
		return err
	}
	l.r = nil
	return l.inner.Skip(absolute)
}

func (l *Layer) SkipToEOF() error {
	if err := l.FlushWrite(); err != nil {
		return err
	}
	l.r = nil
	return l.inner.SkipToEOF()
}

func (l *Layer) SkipRelative(delta int64) error {
	pos, err := l.CurrentPosition()
	if err != nil {
		return err
	}
	return l.Skip(pos + delta)
}

// CurrentPosition reports inner's position: valid at run boundaries
// (see Skip), which is the only time callers above this layer rely on
// it for repositioning.
func (l *Layer) CurrentPosition() (int64, error) { return l.inner.CurrentPosition() }

func (l *Layer) Skippable(dir backend.Direction, amount int64) bool {
	return l.inner.Skippable(dir, amount)
}

func (l *Layer) SyncWrite() error {
	if err := l.FlushWrite(); err != nil {
		return err
	}
	return l.inner.SyncWrite()
}
