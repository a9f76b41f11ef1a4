// Package merge implements the merge walker: a two-source consumer that
// folds a pair of already-open catalogues (plus their data streams) into
// a single new catalogue and data stream, per §4.11. Grounded on the
// original's filtre.cpp (the per-name same-path conflict resolution,
// reusing the same overwriting-policy engine the restore walker
// consults) and catalogue.cpp's tree-merge helpers.
package merge

import (
	"github.com/edrusb/darchive/mask"
	"github.com/edrusb/darchive/overwrite"
)

// Options configures one merge pass over two input catalogues, named
// First (the "incoming"/newer side) and Second (the "in-place"/older
// side) to match overwrite.Resolve's (inPlace, incoming) convention.
type Options struct {
	NameMask mask.Mask
	PathMask mask.Mask

	Policy   overwrite.Action
	Resolver overwrite.AskResolver

	// KeepCompressed suspends output compression while copying a winning
	// file that was stored uncompressed (CompressionAlgo 0). Content
	// stored compressed is still decoded and re-encoded.
	KeepCompressed bool

	// Decremental switches to decremental-backup semantics: every name
	// present in Second is emitted as a Deleted marker, and every name
	// in First that is new or newer than its Second counterpart is also
	// emitted (§4.11 "Decremental mode").
	Decremental bool
}

func nilOr(m mask.Mask) mask.Mask {
	if m == nil {
		return mask.AlwaysTrue()
	}
	return m
}
