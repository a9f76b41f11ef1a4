package main

import (
	"github.com/spf13/cobra"

	"github.com/edrusb/darchive/archive"
	"github.com/edrusb/darchive/errs"
)

// newIsolateCommand implements -C: extracting just the catalogue of an
// existing archive into a new, data-free archive, so it can be kept as
// a lightweight index or used as a -A reference without the original's
// slices at hand.
func newIsolateCommand() *cobra.Command {
	src := &archiveFlags{}
	var destBasename, destDir string
	cmd := &cobra.Command{
		Use:   "isolate <source-archive-basename> <catalogue-basename>",
		Short: "Isolate an archive's catalogue into a new, data-free archive (-C)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src.basename = args[0]
			destBasename = args[1]
			return runIsolate(src, destBasename, destDir)
		},
	}
	cmd.Flags().StringVar(&src.dir, "dir", "", "directory holding the source archive's slices")
	cmd.Flags().StringVarP(&src.firstSize, "first-slice-size", "s", "", "first slice size")
	cmd.Flags().StringVarP(&src.nextSize, "next-slice-size", "S", "", "subsequent slice size")
	cmd.Flags().StringVarP(&src.password, "key", "K", "", "source archive passphrase")
	cmd.Flags().StringVar(&destDir, "dest-dir", "", "directory to write the isolated catalogue's slices into")
	return cmd
}

func runIsolate(src *archiveFlags, destBasename, destDir string) error {
	a, tree, err := openArchiveForRead(src)
	if err != nil {
		return err
	}
	dest := &archiveFlags{basename: destBasename, dir: destDir, firstSize: src.firstSize, nextSize: src.nextSize}
	sp, err := dest.sliceParams()
	if err != nil {
		return errs.Wrap(err, "isolate: parsing destination slice parameters")
	}
	out, err := archive.Create(nil, archive.CreateParams{SliceParams: sp, DataName: destBasename})
	if err != nil {
		return err
	}
	if err := out.Finalize(tree); err != nil {
		return err
	}
	return a.Terminate()
}
