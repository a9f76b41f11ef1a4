package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/edrusb/darchive/archive"
	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/walker/backup"
)

// newCreateCommand implements -c: a full or differential backup of -R
// into a newly created archive.
func newCreateCommand() *cobra.Command {
	f := &archiveFlags{}
	cmd := &cobra.Command{
		Use:   "create <archive-basename>",
		Short: "Create a new archive from a filesystem tree (-c)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.basename = args[0]
			return runCreate(cmd.Context(), f)
		},
	}
	bindArchiveFlags(cmd, f)
	return cmd
}

func runCreate(ctx context.Context, f *archiveFlags) error {
	ui := newLogger()
	if err := f.loadIncludeFile(); err != nil {
		return errs.Wrap(err, "create: reading include file")
	}

	var refArchive *archive.Archive
	var refDirectory *catalog.Directory
	var sigFor backup.DeltaSignatureProvider

	if f.refArchive != "" {
		refParams, err := (&archiveFlags{basename: f.refArchive, dir: f.dir, firstSize: f.firstSize, nextSize: f.nextSize}).sliceParams()
		if err != nil {
			return errs.Wrap(err, "create: parsing reference archive slice parameters")
		}
		ra, tree, err := archive.Open(nil, archive.OpenParams{SliceParams: refParams, Passphrase: f.refPass})
		if err != nil {
			return errs.Wrap(err, "create: opening reference archive")
		}
		refArchive = ra
		if tree != nil {
			refDirectory = tree.Root
		}
		sigFor = ra.ReferenceSignatureProvider()
	}

	sp, err := f.sliceParams()
	if err != nil {
		return errs.Wrap(err, "create: parsing slice parameters")
	}
	a, err := archive.Create(nil, archive.CreateParams{
		SliceParams:     sp,
		Passphrase:      f.password,
		CompressionAlgo: compressionAlgo(f.compress),
		DataName:        f.basename,
	})
	if err != nil {
		return err
	}

	opts := backup.Options{
		NameMask:        nameMask(f.include, f.exclude),
		PathMask:        pathMask(f.pathInclude, f.pathExclude),
		CompressionAlgo: compressionAlgo(f.compress),
		HonorNodump:     f.nodump,
	}
	w := backup.New(opts, ui, a.Stream, sigFor)
	tree, err := w.Run(ctx, f.root, refDirectory)
	if err != nil {
		return err
	}
	if refArchive != nil {
		if err := refArchive.Terminate(); err != nil {
			ui.Warnf("create: closing reference archive: %v", err)
		}
	}
	if err := a.Finalize(tree); err != nil {
		return err
	}
	return printSummary(w.Counters())
}

// bindArchiveFlags registers the shared -R/-s/-S/-z/... flag set on a
// subcommand's *pflag.FlagSet (the concrete type cobra.Command.Flags()
// returns).
func bindArchiveFlags(cmd *cobra.Command, f *archiveFlags) {
	flags := cmd.Flags()
	bindArchiveFlagSet(flags, f)
}

func bindArchiveFlagSet(flags *pflag.FlagSet, f *archiveFlags) {
	flags.StringVarP(&f.root, "root", "R", ".", "root of the filesystem tree to operate on")
	flags.StringVar(&f.dir, "dir", "", "directory holding the archive's slices (defaults to the basename's own directory)")
	flags.StringVarP(&f.firstSize, "first-slice-size", "s", "", "first slice size (bytes, k/M/G suffix allowed; empty means unsplit)")
	flags.StringVarP(&f.nextSize, "next-slice-size", "S", "", "subsequent slice size")
	flags.StringVarP(&f.compress, "compress", "z", "", "compression algorithm: n(one)/z(gzip)/l(z4)/y|x(z)")
	flags.StringVarP(&f.password, "key", "K", "", "archive passphrase")
	flags.StringVarP(&f.refArchive, "reference-archive", "A", "", "reference archive basename for a differential/incremental backup")
	flags.StringVarP(&f.refPass, "reference-key", "J", "", "reference archive passphrase")
	flags.StringVarP(&f.hook, "hook", "E", "", "shell command run between slices, %p/%n substituted")
	flags.StringArrayVarP(&f.exclude, "exclude", "X", nil, "exclude names matching this glob")
	flags.StringArrayVarP(&f.include, "include", "I", nil, "include only names matching this glob")
	flags.StringVarP(&f.includeFile, "include-file", "B", "", "read additional -I glob patterns from this file (searched via DAR_DCF_PATH)")
	flags.StringArrayVarP(&f.pathExclude, "exclude-path", "P", nil, "exclude paths matching this glob")
	flags.StringArrayVarP(&f.pathInclude, "include-path", "g", nil, "include only paths matching this glob")
	flags.BoolVarP(&f.recordEmptyDirs, "record-empty-dirs", "D", false, "accepted; excluded directories are always recorded as empty placeholders, with or without this flag")
	flags.BoolVarP(&f.sameFilesystem, "same-filesystem", "M", false, "accepted; has no effect: mount points are crossed")
	flags.BoolVar(&f.mtimeOnly, "am", false, "accepted; has no effect on how the backup decides an entry changed")
	flags.BoolVar(&f.nodump, "nodump", false, "honour the nodump (chattr +d) file attribute")
	flags.BoolVarP(&f.noOverwrite, "no-overwrite", "n", false, "never overwrite an existing entry")
	flags.BoolVarP(&f.warnOverwrite, "warn-overwrite", "w", false, "accepted; behaves like the default (overwrite without warning)")
}
