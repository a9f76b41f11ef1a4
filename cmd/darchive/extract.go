package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/edrusb/darchive/archive"
	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/walker/restore"
)

// newExtractCommand implements -x: restoring an archive onto -R.
func newExtractCommand() *cobra.Command {
	f := &archiveFlags{}
	cmd := &cobra.Command{
		Use:   "extract <archive-basename>",
		Short: "Restore an archive's contents onto disk (-x)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.basename = args[0]
			return runExtract(cmd.Context(), f, false)
		},
	}
	bindArchiveFlags(cmd, f)
	return cmd
}

// newTestCommand implements -t: a dry-run restore that verifies every
// entry (CRCs, delta bases) without touching the filesystem.
func newTestCommand() *cobra.Command {
	f := &archiveFlags{}
	cmd := &cobra.Command{
		Use:   "test <archive-basename>",
		Short: "Verify an archive's integrity without restoring it (-t)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.basename = args[0]
			return runExtract(cmd.Context(), f, true)
		},
	}
	bindArchiveFlags(cmd, f)
	return cmd
}

func openArchiveForRead(f *archiveFlags) (*archive.Archive, *catalog.Tree, error) {
	sp, err := f.sliceParams()
	if err != nil {
		return nil, nil, errs.Wrap(err, "parsing slice parameters")
	}
	a, tree, err := archive.Open(nil, archive.OpenParams{SliceParams: sp, Passphrase: f.password})
	if err != nil {
		return nil, nil, err
	}
	if tree == nil {
		return nil, nil, errs.New(errs.KindRange, "archive's catalogue could not be located (truncated trailer)")
	}
	return a, tree, nil
}

func runExtract(ctx context.Context, f *archiveFlags, dryRun bool) error {
	ui := newLogger()
	a, tree, err := openArchiveForRead(f)
	if err != nil {
		return err
	}

	opts := restore.Options{
		NameMask: nameMask(f.include, f.exclude),
		PathMask: pathMask(f.pathInclude, f.pathExclude),
		Policy:   f.overwritePolicy(),
		Empty:    dryRun,
	}
	w := restore.New(opts, ui, a.Stream, nil)
	if err := w.Run(ctx, f.root, tree); err != nil {
		return err
	}
	if err := a.Terminate(); err != nil {
		ui.Warnf("closing archive: %v", err)
	}
	return printSummary(w.Counters())
}
