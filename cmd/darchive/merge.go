package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/edrusb/darchive/archive"
	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/walker/merge"
)

// newMergeCommand implements -+: folding two archives into one.
func newMergeCommand() *cobra.Command {
	var first, second archiveFlags
	var decremental, keepCompressed bool
	var destBasename, destDir, destFirstSize, destNextSize string
	cmd := &cobra.Command{
		Use:   "merge <first-archive> <second-archive> <dest-archive>",
		Short: "Merge two archives into one (-+)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			first.basename = args[0]
			second.basename = args[1]
			destBasename = args[2]
			return runMerge(cmd.Context(), &first, &second, destBasename, destDir, destFirstSize, destNextSize, decremental, keepCompressed)
		},
	}
	cmd.Flags().StringVar(&first.dir, "dir1", "", "directory holding the first archive's slices")
	cmd.Flags().StringVarP(&first.password, "key1", "K", "", "first archive passphrase")
	cmd.Flags().StringVar(&second.dir, "dir2", "", "directory holding the second archive's slices")
	cmd.Flags().StringVarP(&second.password, "key2", "J", "", "second archive passphrase")
	cmd.Flags().StringVar(&destDir, "dest-dir", "", "directory to write the merged archive's slices into")
	cmd.Flags().StringVarP(&destFirstSize, "first-slice-size", "s", "", "merged archive's first slice size")
	cmd.Flags().StringVarP(&destNextSize, "next-slice-size", "S", "", "merged archive's subsequent slice size")
	cmd.Flags().BoolVar(&decremental, "decremental", false, "build a decremental backup instead of a union merge")
	cmd.Flags().BoolVar(&keepCompressed, "keep-compressed", false, "avoid recompressing content already stored uncompressed")
	return cmd
}

func runMerge(ctx context.Context, first, second *archiveFlags, destBasename, destDir, firstSize, nextSize string, decremental, keepCompressed bool) error {
	ui := newLogger()

	a1, tree1, err := openArchiveForRead(first)
	if err != nil {
		return errs.Wrap(err, "merge: opening first archive")
	}
	a2, tree2, err := openArchiveForRead(second)
	if err != nil {
		return errs.Wrap(err, "merge: opening second archive")
	}

	destFlags := &archiveFlags{basename: destBasename, dir: destDir, firstSize: firstSize, nextSize: nextSize}
	sp, err := destFlags.sliceParams()
	if err != nil {
		return errs.Wrap(err, "merge: parsing destination slice parameters")
	}
	out, err := archive.Create(nil, archive.CreateParams{SliceParams: sp, DataName: destBasename})
	if err != nil {
		return err
	}

	opts := merge.Options{Decremental: decremental, KeepCompressed: keepCompressed}
	w := merge.New(opts, ui, a1.Stream, a2.Stream, out.Stream)
	merged, err := w.Run(ctx, tree1, tree2)
	if err != nil {
		return err
	}
	if err := out.Finalize(merged); err != nil {
		return err
	}
	if err := a1.Terminate(); err != nil {
		ui.Warnf("merge: closing first archive: %v", err)
	}
	if err := a2.Terminate(); err != nil {
		ui.Warnf("merge: closing second archive: %v", err)
	}
	return printSummary(w.Counters())
}
