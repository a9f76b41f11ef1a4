// Package restore implements the restore walker: a sequential consumer
// of an open catalogue that recreates inodes and hard links on the
// target filesystem, obeying the overwriting policy, per §4.10.
// Grounded on the original's filesystem_restore.cpp (inode creation
// order, end-of-directory timestamp reapplication, hard-link
// materialisation) and filesystem_hard_link_write.cpp (the write-side
// etiquette/path map).
package restore

import (
	"github.com/edrusb/darchive/mask"
	"github.com/edrusb/darchive/overwrite"
)

// WhatToCheck controls how much of an existing target entry is
// inspected before deciding whether it differs from the incoming one.
type WhatToCheck int

const (
	CheckData WhatToCheck = iota
	CheckMetadata
	CheckNothing
)

// MismatchResolver is consulted when a deleted-marker's target exists
// but does not match the recorded original kind (§4.10 "a mismatch
// raises an interactive confirmation").
type MismatchResolver interface {
	ConfirmRemoveMismatch(path string, existingKind, expectedKind byte) (bool, error)
}

// Options configures one restore walk.
type Options struct {
	NameMask mask.Mask
	PathMask mask.Mask
	EAMask   mask.Mask

	Policy   overwrite.Action
	Resolver overwrite.AskResolver

	Flat              bool
	WhatToCheck       WhatToCheck
	WarnBeforeRemove  bool
	MismatchResolver  MismatchResolver
	Empty             bool // dry run: decide and log, touch nothing
	OnlyOverwrite     bool // skip entries that do not already exist
	SparseHoleMinSize int64
}

func nilOr(m mask.Mask) mask.Mask {
	if m == nil {
		return mask.AlwaysTrue()
	}
	return m
}
