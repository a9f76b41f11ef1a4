// Package archive implements the archive open/create façade: it
// assembles the slice → cipher → compress → escape stack, writes and
// parses the leading header and trailing catalogue-locator, and hands
// the caller a ready-to-drive (catalogue, data channel) pair, per
// §4.12. Grounded on the original's `header.cpp` (the leading
// magic/version/algo header) and `sar.cpp`/`trailer.cpp` (the
// end-of-archive catalogue locator and the open path's "seek to end,
// back up by the trailer's fixed size" probe).
package archive

import (
	"bytes"
	"io"

	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/infinint"
	"github.com/edrusb/darchive/stack/compress"
)

// Magic identifies this implementation's archive header, distinct from
// slice.Magic (which tags each individual slice file).
var Magic = [4]byte{'D', 'A', 'R', 'C'}

// CipherAlgo identifies the archive's encryption, if any.
type CipherAlgo byte

const (
	CipherNone CipherAlgo = iota
	CipherAES
)

const Version byte = 1

// keyCheckPlaintext is the known plaintext written as the first block
// of ciphertext immediately after the (clear-text) header, so a wrong
// password is caught at open time instead of surfacing later as a
// confusing decompression or catalogue-parse failure.
var keyCheckPlaintext = bytes.Repeat(Magic[:], 4)

// Header is the leading, unencrypted, uncompressed header every
// archive begins with: enough to identify the format, pick the cipher
// key (via Salt) and compression codec, and carry the free-form
// data-name label the original used to pair a base archive with the
// differential archives built against it.
type Header struct {
	CipherAlgo      CipherAlgo
	CompressionAlgo compress.Algo
	Salt            [16]byte
	DataName        string
}

func (h Header) encode(w io.Writer) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{Version, byte(h.CipherAlgo), byte(h.CompressionAlgo)}); err != nil {
		return err
	}
	if _, err := w.Write(h.Salt[:]); err != nil {
		return err
	}
	if err := infinint.FromInt(len(h.DataName)).Encode(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, h.DataName)
	return err
}

func decodeHeader(r io.Reader) (Header, error) {
	var h Header
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return h, errs.Wrap(err, "archive.decodeHeader: reading magic")
	}
	if magic != Magic {
		return h, errs.New(errs.KindRange, "archive.decodeHeader: wrong magic, not a recognised archive")
	}
	var fixed [3]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return h, errs.Wrap(err, "archive.decodeHeader: reading version/algo bytes")
	}
	if fixed[0] != Version {
		return h, errs.Newf(errs.KindFeature, "archive.decodeHeader: unsupported archive version %d", fixed[0])
	}
	h.CipherAlgo = CipherAlgo(fixed[1])
	h.CompressionAlgo = compress.Algo(fixed[2])
	if _, err := io.ReadFull(r, h.Salt[:]); err != nil {
		return h, errs.Wrap(err, "archive.decodeHeader: reading salt")
	}
	nameLenI, err := infinint.Decode(r)
	if err != nil {
		return h, errs.Wrap(err, "archive.decodeHeader: reading data-name length")
	}
	nameLen, err := nameLenI.Uint64()
	if err != nil {
		return h, errs.Wrap(err, "archive.decodeHeader: data-name length out of range")
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return h, errs.Wrap(err, "archive.decodeHeader: reading data-name")
	}
	h.DataName = string(name)
	return h, nil
}
