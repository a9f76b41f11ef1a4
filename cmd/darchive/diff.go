package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/edrusb/darchive/walker/backup"
)

// newDiffCommand implements -d: comparing -R against an archive's
// catalogue without creating anything, reusing the backup walker's own
// reference-comparison logic (a "create" run that never opens a
// destination archive) and reporting its per-category counts as the
// diff summary.
func newDiffCommand() *cobra.Command {
	f := &archiveFlags{}
	cmd := &cobra.Command{
		Use:   "diff <archive-basename>",
		Short: "Compare a filesystem tree against an archive's catalogue (-d)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.basename = args[0]
			return runDiff(cmd.Context(), f)
		},
	}
	bindArchiveFlags(cmd, f)
	return cmd
}

func runDiff(ctx context.Context, f *archiveFlags) error {
	ui := newLogger()
	a, tree, err := openArchiveForRead(f)
	if err != nil {
		return err
	}

	opts := backup.Options{
		NameMask:    nameMask(f.include, f.exclude),
		PathMask:    pathMask(f.pathInclude, f.pathExclude),
		HonorNodump: f.nodump,
	}
	w := backup.New(opts, ui, nil, nil)
	if _, err := w.Run(ctx, f.root, tree.Root); err != nil {
		return err
	}
	if err := a.Terminate(); err != nil {
		ui.Warnf("closing archive: %v", err)
	}
	return printSummary(w.Counters())
}
