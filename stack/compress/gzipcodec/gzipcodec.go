// Package gzipcodec implements the gzip-class compress.Codec (the
// archive's default compression algorithm), via klauspost/compress's
// drop-in faster gzip, the same library distr1-distri and
// KarpelesLab-squashfs reach for over the standard library's gzip.
package gzipcodec

import (
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/edrusb/darchive/stack/compress"
)

// Codec is a compress.Codec at the given gzip compression level
// (gzip.DefaultCompression if zero-valued is not desired, callers pick
// explicitly).
type Codec struct {
	Level int
}

// New returns a Codec at gzip.DefaultCompression.
func New() Codec { return Codec{Level: gzip.DefaultCompression} }

func (c Codec) NewWriter(w io.Writer) (compress.CodecWriter, error) {
	gw, err := gzip.NewWriterLevel(w, c.Level)
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func (c Codec) NewReader(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}
