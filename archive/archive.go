package archive

import (
	"bytes"
	"io"

	"github.com/google/uuid"

	"github.com/edrusb/darchive/backend"
	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/delta"
	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/stack/cipher"
	"github.com/edrusb/darchive/stack/compress"
	"github.com/edrusb/darchive/stack/compress/gzipcodec"
	"github.com/edrusb/darchive/stack/compress/lz4codec"
	"github.com/edrusb/darchive/stack/compress/xzcodec"
	"github.com/edrusb/darchive/stack/escape"
	"github.com/edrusb/darchive/stack/slice"
)

// CreateParams configures a freshly created archive's stack.
type CreateParams struct {
	SliceParams     slice.Params
	Passphrase      string // empty means no cipher layer
	CompressionAlgo compress.Algo
	DataName        string
}

// OpenParams configures opening an existing archive for reading.
type OpenParams struct {
	SliceParams slice.Params
	Passphrase  string
}

// Archive holds one open archive's assembled stack: slice manager at
// the bottom, an optional cipher layer, the compressor, and the escape
// framing layer on top — the channel every walker reads/writes
// through.
type Archive struct {
	mgr      *slice.Manager
	compress *compress.Layer
	Stream   *escape.Layer

	header Header
	mode   backend.Mode
}

func codecFor(algo compress.Algo) compress.Codec {
	switch algo {
	case compress.AlgoGzip:
		return gzipcodec.New()
	case compress.AlgoLZ4:
		return lz4codec.New()
	case compress.AlgoXZ:
		return xzcodec.New()
	default:
		return nil
	}
}

// Create assembles a new archive's stack over w and writes its leading
// header, per §4.12's create path.
func Create(w io.Writer, params CreateParams) (*Archive, error) {
	mgr, err := slice.NewWriter(params.SliceParams, w)
	if err != nil {
		return nil, errs.Wrap(err, "archive.Create: opening slice writer")
	}

	var base backend.Channel = mgr
	var salt [16]byte
	cipherAlgo := CipherNone
	if params.Passphrase != "" {
		s, err := cipher.NewSalt()
		if err != nil {
			return nil, errs.Wrap(err, "archive.Create: generating salt")
		}
		copy(salt[:], s)
		key := cipher.DeriveKey(params.Passphrase, s)
		cl, err := cipher.NewLayer(mgr, key)
		if err != nil {
			return nil, errs.Wrap(err, "archive.Create: building cipher layer")
		}
		base = cl
		cipherAlgo = CipherAES
	}

	dataName := params.DataName
	if dataName == "" {
		dataName = uuid.NewString()
	}
	hdr := Header{CipherAlgo: cipherAlgo, CompressionAlgo: params.CompressionAlgo, Salt: salt, DataName: dataName}
	if err := hdr.encode(mgr); err != nil {
		return nil, errs.Wrap(err, "archive.Create: writing header")
	}
	if cipherAlgo == CipherAES {
		if _, err := base.Write(keyCheckPlaintext); err != nil {
			return nil, errs.Wrap(err, "archive.Create: writing password-check block")
		}
	}

	compressLayer := compress.NewLayer(base, codecFor(params.CompressionAlgo))
	esc := escape.NewLayer(compressLayer)
	return &Archive{mgr: mgr, compress: compressLayer, Stream: esc, header: hdr, mode: backend.WriteOnly}, nil
}

// Open assembles the stack of an existing archive, per §4.12's open
// path's failure taxonomy (wrong-magic / wrong-version / bad-password /
// missing-slice / truncated-archive / CRC-mismatch / unsupported-
// feature, each surfaced as an error; the errs.Kind alone does not tell
// them apart, e.g. wrong magic and truncation are both KindRange). It
// also attempts the
// trailer fast path; the returned tree is nil when the archive must
// instead be driven sequentially (piped input, or a truncated trailer).
func Open(r io.Reader, params OpenParams) (*Archive, *catalog.Tree, error) {
	mgr, err := slice.NewReader(params.SliceParams, r)
	if err != nil {
		return nil, nil, errs.Wrap(err, "archive.Open: opening slice reader")
	}
	hdr, err := decodeHeader(mgr)
	if err != nil {
		return nil, nil, err
	}

	var base backend.Channel = mgr
	if hdr.CipherAlgo == CipherAES {
		if params.Passphrase == "" {
			return nil, nil, errs.New(errs.KindData, "archive.Open: archive is encrypted, a password is required")
		}
		key := cipher.DeriveKey(params.Passphrase, hdr.Salt[:])
		cl, err := cipher.NewLayer(mgr, key)
		if err != nil {
			return nil, nil, errs.Wrap(err, "archive.Open: building cipher layer")
		}
		check := make([]byte, len(keyCheckPlaintext))
		if _, err := io.ReadFull(cl, check); err != nil {
			return nil, nil, errs.Wrap(err, "archive.Open: reading password-check block")
		}
		if !bytes.Equal(check, keyCheckPlaintext) {
			return nil, nil, errs.New(errs.KindData, "archive.Open: bad password")
		}
		base = cl
	}

	compressLayer := compress.NewLayer(base, codecFor(hdr.CompressionAlgo))
	esc := escape.NewLayer(compressLayer)
	a := &Archive{mgr: mgr, compress: compressLayer, Stream: esc, header: hdr, mode: backend.ReadOnly}

	tree, err := a.tryLoadCatalogueFromTrailer()
	if err != nil {
		tree = nil // fall back to sequential mode; not itself a hard failure
	}
	return a, tree, nil
}

func (a *Archive) Header() Header { return a.header }

// tryLoadCatalogueFromTrailer implements the open path's fast path: the
// trailer lives at a fixed offset from the end of the raw slice stream,
// unencrypted and uncompressed like the leading header, so it can be
// located before any cipher/compression state exists.
func (a *Archive) tryLoadCatalogueFromTrailer() (*catalog.Tree, error) {
	if err := a.mgr.SkipToEOF(); err != nil {
		return nil, errs.Wrap(err, "archive: seeking to end of archive")
	}
	end, err := a.mgr.CurrentPosition()
	if err != nil {
		return nil, err
	}
	if end < TrailerSize {
		return nil, errs.New(errs.KindRange, "archive: truncated archive, too short for a trailer")
	}
	if err := a.mgr.Skip(end - TrailerSize); err != nil {
		return nil, errs.Wrap(err, "archive: seeking to trailer")
	}
	trailer, err := decodeTrailer(a.mgr)
	if err != nil {
		return nil, err
	}
	if err := a.Stream.Skip(trailer.CatalogueOffset); err != nil {
		return nil, errs.Wrap(err, "archive: seeking to catalogue")
	}
	lr := io.LimitReader(a.Stream, trailer.CatalogueSize)
	tree, err := catalog.LoadTree(lr)
	if err != nil {
		return nil, errs.Wrap(err, "archive: parsing catalogue")
	}
	return tree, nil
}

// Finalize writes tree as the create path's closing sequence: flush the
// current compression run, dump the catalogue, note its bounds, write
// the trailer, and terminate every layer top-down, per §4.12's create
// path.
func (a *Archive) Finalize(tree *catalog.Tree) error {
	if a.mode != backend.WriteOnly {
		return errs.New(errs.KindBug, "archive.Finalize: archive was not opened for writing")
	}
	if err := a.compress.FlushWrite(); err != nil {
		return errs.Wrap(err, "archive.Finalize: flushing compressor")
	}
	catalogueOffset, err := a.Stream.CurrentPosition()
	if err != nil {
		return err
	}
	if err := catalog.DumpTree(a.Stream, tree); err != nil {
		return errs.Wrap(err, "archive.Finalize: dumping catalogue")
	}
	if err := a.compress.FlushWrite(); err != nil {
		return errs.Wrap(err, "archive.Finalize: flushing compressor after catalogue")
	}
	catalogueEnd, err := a.Stream.CurrentPosition()
	if err != nil {
		return err
	}
	trailer := Trailer{CatalogueOffset: catalogueOffset, CatalogueSize: catalogueEnd - catalogueOffset}
	if err := trailer.encode(a.mgr); err != nil {
		return errs.Wrap(err, "archive.Finalize: writing trailer")
	}
	return a.Terminate()
}

// Terminate releases every layer top-down, per §5's "single-threaded
// cooperative" teardown discipline.
func (a *Archive) Terminate() error {
	if err := a.Stream.Terminate(); err != nil {
		return errs.Wrap(err, "archive.Terminate: escape layer")
	}
	return nil
}

// ReferenceSignatureProvider builds a walker/backup.DeltaSignatureProvider-
// shaped function bound to this (reference) archive's own stream, since
// only the archive façade owns the channel a reference file's delta
// signature was dumped into.
func (a *Archive) ReferenceSignatureProvider() func(f *catalog.File) (delta.Signature, bool) {
	return func(f *catalog.File) (delta.Signature, bool) {
		if !f.HasDeltaSig {
			return delta.Signature{}, false
		}
		off, err := f.SigOffset.Uint64()
		if err != nil {
			return delta.Signature{}, false
		}
		size, err := f.SigSize.Uint64()
		if err != nil {
			return delta.Signature{}, false
		}
		if err := a.Stream.Skip(int64(off)); err != nil {
			return delta.Signature{}, false
		}
		sig, err := decodeSignature(io.LimitReader(a.Stream, int64(size)))
		if err != nil {
			return delta.Signature{}, false
		}
		return sig, true
	}
}
