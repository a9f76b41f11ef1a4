package backend

import (
	"io"
	"os"

	"github.com/edrusb/darchive/errs"
)

// FileChannel is a Channel backed by an *os.File, the base layer every
// slice sits on (one FileChannel per slice file).
type FileChannel struct {
	f    *os.File
	mode Mode
	// closeFn, if set, closes/finalizes the file (e.g. an atomic rename
	// on Terminate); defaults to f.Close.
	closeFn func() error
}

// NewFileChannel wraps an already-open *os.File.
func NewFileChannel(f *os.File, mode Mode) *FileChannel {
	return &FileChannel{f: f, mode: mode}
}

// SetCloseFunc overrides what Terminate does to finalize the file,
// allowing callers (the slice manager) to substitute an atomic rename.
func (c *FileChannel) SetCloseFunc(fn func() error) { c.closeFn = fn }

func (c *FileChannel) Mode() Mode { return c.mode }

func (c *FileChannel) Read(p []byte) (int, error) { return c.f.Read(p) }

func (c *FileChannel) Write(p []byte) (int, error) {
	if c.mode == ReadOnly {
		return 0, errs.New(errs.KindRange, "backend.FileChannel: write to a read-only channel")
	}
	return c.f.Write(p)
}

func (c *FileChannel) Skip(absolute int64) error {
	_, err := c.f.Seek(absolute, io.SeekStart)
	return err
}

func (c *FileChannel) SkipToEOF() error {
	_, err := c.f.Seek(0, io.SeekEnd)
	return err
}

func (c *FileChannel) SkipRelative(delta int64) error {
	_, err := c.f.Seek(delta, io.SeekCurrent)
	return err
}

func (c *FileChannel) CurrentPosition() (int64, error) {
	return c.f.Seek(0, io.SeekCurrent)
}

func (c *FileChannel) Skippable(Direction, int64) bool { return true }

func (c *FileChannel) SyncWrite() error {
	if c.mode == ReadOnly {
		return nil
	}
	return c.f.Sync()
}

func (c *FileChannel) Terminate() error {
	if c.closeFn != nil {
		fn := c.closeFn
		c.closeFn = nil
		return fn()
	}
	if c.f == nil {
		return nil
	}
	f := c.f
	c.f = nil
	return f.Close()
}

// PipeChannel wraps a non-seekable io.Reader or io.Writer (standard input
// or output), the degenerate single-slice case of §4.2 "Piped mode". Any
// Skip call fails with ErrNotSeekable so upper layers can fall back to
// sequential-read mode.
type PipeChannel struct {
	r    io.Reader
	w    io.Writer
	mode Mode
	pos  int64
}

// NewPipeReader wraps a non-seekable reader.
func NewPipeReader(r io.Reader) *PipeChannel { return &PipeChannel{r: r, mode: ReadOnly} }

// NewPipeWriter wraps a non-seekable writer.
func NewPipeWriter(w io.Writer) *PipeChannel { return &PipeChannel{w: w, mode: WriteOnly} }

func (p *PipeChannel) Mode() Mode { return p.mode }

func (p *PipeChannel) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.pos += int64(n)
	return n, err
}

func (p *PipeChannel) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.pos += int64(n)
	return n, err
}

func (p *PipeChannel) Skip(int64) error           { return ErrNotSeekable }
func (p *PipeChannel) SkipToEOF() error            { return ErrNotSeekable }
func (p *PipeChannel) SkipRelative(delta int64) error {
	if delta == 0 {
		return nil
	}
	return ErrNotSeekable
}
func (p *PipeChannel) CurrentPosition() (int64, error) { return p.pos, nil }
func (p *PipeChannel) Skippable(Direction, int64) bool { return false }
func (p *PipeChannel) SyncWrite() error                { return nil }
func (p *PipeChannel) Terminate() error                { return nil }
