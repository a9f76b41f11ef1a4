// Package xzcodec implements the xz-class compress.Codec via
// github.com/ulikunitz/xz, the modern high-ratio codec family the
// teacher, KarpelesLab-squashfs, bytecodealliance-wasm-tools-go and
// distr1-distri all depend on.
package xzcodec

import (
	"io"

	"github.com/ulikunitz/xz"

	"github.com/edrusb/darchive/stack/compress"
)

// Codec is a compress.Codec backed by xz's streaming format.
type Codec struct{}

// New returns the xz Codec.
func New() Codec { return Codec{} }

type writer struct{ w *xz.Writer }

func (c Codec) NewWriter(w io.Writer) (compress.CodecWriter, error) {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return &writer{w: xw}, nil
}

func (wr *writer) Write(p []byte) (int, error) { return wr.w.Write(p) }
func (wr *writer) Close() error                 { return wr.w.Close() }

func (c Codec) NewReader(r io.Reader) (io.Reader, error) {
	return xz.NewReader(r)
}
