// Package lz4codec implements the lz4-class compress.Codec via
// github.com/pierrec/lz4, the fast-compression algorithm family the
// teacher itself already depends on.
package lz4codec

import (
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/edrusb/darchive/stack/compress"
)

// Codec is a compress.Codec backed by lz4's streaming frame format.
type Codec struct {
	// CompressionLevel, if non-zero, overrides lz4's default.
	CompressionLevel lz4.CompressionLevel
}

// New returns a Codec at lz4's default compression level.
func New() Codec { return Codec{} }

type writer struct{ w *lz4.Writer }

func (c Codec) NewWriter(w io.Writer) (compress.CodecWriter, error) {
	lw := lz4.NewWriter(w)
	if c.CompressionLevel != 0 {
		if err := lw.Apply(lz4.CompressionLevelOption(c.CompressionLevel)); err != nil {
			return nil, err
		}
	}
	return &writer{w: lw}, nil
}

func (wr *writer) Write(p []byte) (int, error) { return wr.w.Write(p) }
func (wr *writer) Close() error                 { return wr.w.Close() }

func (c Codec) NewReader(r io.Reader) (io.Reader, error) {
	return lz4.NewReader(r), nil
}
