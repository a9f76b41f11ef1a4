package restore

import (
	"bytes"
	"io"
	"os"

	"github.com/edrusb/darchive/errs"
)

const defaultSparseHoleMinSize = 4096

// sparseCopy copies n bytes from src to dst, but instead of writing runs
// of at least holeMin consecutive zero bytes, seeks dst forward over
// them, leaving a filesystem hole — §4.10 "sparse files": "runs of zero
// bytes cause skip on the destination". The destination is truncated to
// the final size at the end, since a trailing zero run seeked over
// rather than written would otherwise leave the file short.
func sparseCopy(dst *os.File, src io.Reader, n int64, holeMin int64) error {
	if holeMin <= 0 {
		holeMin = defaultSparseHoleMinSize
	}
	buf := make([]byte, 64*1024)
	var total int64
	var pos int64

	for total < n {
		want := int64(len(buf))
		if remaining := n - total; remaining < want {
			want = remaining
		}
		read, err := io.ReadFull(src, buf[:want])
		if read > 0 {
			if err := writeSparseChunk(dst, buf[:read], &pos, holeMin); err != nil {
				return err
			}
			total += int64(read)
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return errs.Wrap(err, "restore: reading sparse content")
		}
		if read == 0 {
			break
		}
	}
	if err := dst.Truncate(n); err != nil {
		return errs.Wrap(err, "restore: truncating sparse file to final size")
	}
	return nil
}

// writeSparseChunk walks chunk looking for zero runs of at least
// holeMin bytes, seeking dst over them instead of writing, and writes
// everything else verbatim. pos tracks dst's current write offset.
func writeSparseChunk(dst *os.File, chunk []byte, pos *int64, holeMin int64) error {
	i := 0
	for i < len(chunk) {
		if chunk[i] != 0 {
			j := i + 1
			for j < len(chunk) && chunk[j] != 0 {
				j++
			}
			if err := seekWrite(dst, pos, chunk[i:j]); err != nil {
				return err
			}
			i = j
			continue
		}
		j := i + 1
		for j < len(chunk) && chunk[j] == 0 {
			j++
		}
		runLen := int64(j - i)
		if runLen >= holeMin {
			if _, err := dst.Seek(runLen, io.SeekCurrent); err != nil {
				return errs.Wrap(err, "restore: seeking over sparse hole")
			}
			*pos += runLen
		} else if err := seekWrite(dst, pos, bytes.Repeat([]byte{0}, int(runLen))); err != nil {
			return err
		}
		i = j
	}
	return nil
}

func seekWrite(dst *os.File, pos *int64, p []byte) error {
	n, err := dst.Write(p)
	*pos += int64(n)
	if err != nil {
		return errs.Wrap(err, "restore: writing content")
	}
	return nil
}
