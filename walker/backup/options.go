// Package backup implements the backup walker: a recursive filesystem
// scan that compares each entry against an optional reference catalogue
// and streams save/skip/delta decisions into a new catalogue and its
// accompanying byte-channel content, per the original's
// filesystem_backup.cpp / filtre.cpp pairing (the former drives the
// filesystem-side recursion and hard-link bookkeeping, the latter the
// per-entry mask/recency decision this package folds into
// decideSavedStatus).
package backup

import (
	"github.com/edrusb/darchive/mask"
	"github.com/edrusb/darchive/stack/compress"
)

// RetryAction is the walker's choice once an in-read modification retry
// budget is exhausted (§4.9 "in-read modifications").
type RetryAction int

const (
	// RetryMarkDirty keeps the copy already streamed and tags the entry
	// dirty rather than failing the whole backup.
	RetryMarkDirty RetryAction = iota
	// RetryFailedBackup abandons the entry: the attempts already streamed
	// are followed by a failed-backup mark, and the entry is recorded
	// inode-only.
	RetryFailedBackup
)

// Options configures one backup walk. Masks default to nil, which
// IsCovered-tests as "not excluded" (mask.AlwaysTrue semantics) via the
// nilOr helper.
type Options struct {
	NameMask        mask.Mask
	PathMask        mask.Mask
	EAMask          mask.Mask
	CompressionMask mask.Mask

	MinCompressSize int64
	CompressionAlgo compress.Algo
	Codec           compress.Codec // nil when CompressionAlgo == compress.AlgoNone

	HonorNodump     bool
	CacheDirTagging bool
	FurtiveRead     bool

	ComputeDeltaSignature bool
	DeltaSaveEnabled      bool
	DeltaBlockSize        int

	MaxInReadRetries int
	OnRetryExhausted RetryAction
}

func nilOr(m mask.Mask) mask.Mask {
	if m == nil {
		return mask.AlwaysTrue()
	}
	return m
}
