package archive

import (
	"encoding/binary"
	"io"

	"github.com/edrusb/darchive/errs"
)

// TrailerSize is the trailer's on-wire byte length. It must be fixed
// (not infinint-prefixed, unlike every other archive field) because the
// open path locates it by seeking to the end of the stream and backing
// up by exactly this many bytes, per §4.12's open path.
const TrailerSize = 4 + 8 + 8

var trailerMagic = [4]byte{'D', 'A', 'R', 'T'}

// Trailer is written once, at the very end of the archive's logical
// stream, recording where the dumped catalogue begins and how long it
// is so the open path can jump straight to it instead of replaying the
// whole sequential stream.
type Trailer struct {
	CatalogueOffset int64
	CatalogueSize   int64
}

func (t Trailer) encode(w io.Writer) error {
	var buf [TrailerSize]byte
	copy(buf[0:4], trailerMagic[:])
	binary.BigEndian.PutUint64(buf[4:12], uint64(t.CatalogueOffset))
	binary.BigEndian.PutUint64(buf[12:20], uint64(t.CatalogueSize))
	_, err := w.Write(buf[:])
	return err
}

func decodeTrailer(r io.Reader) (Trailer, error) {
	var buf [TrailerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Trailer{}, errs.Wrap(err, "archive.decodeTrailer: reading trailer")
	}
	var magic [4]byte
	copy(magic[:], buf[0:4])
	if magic != trailerMagic {
		return Trailer{}, errs.New(errs.KindRange, "archive.decodeTrailer: trailer not found at expected offset")
	}
	return Trailer{
		CatalogueOffset: int64(binary.BigEndian.Uint64(buf[4:12])),
		CatalogueSize:   int64(binary.BigEndian.Uint64(buf[12:20])),
	}, nil
}
