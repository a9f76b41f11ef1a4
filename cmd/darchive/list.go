package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edrusb/darchive/catalog"
)

// newListCommand implements -l: a listing, indented by directory depth, of every entry in an
// archive's catalogue, without touching its data.
func newListCommand() *cobra.Command {
	f := &archiveFlags{}
	cmd := &cobra.Command{
		Use:   "list <archive-basename>",
		Short: "List an archive's catalogue contents (-l)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.basename = args[0]
			return runList(f)
		},
	}
	cmd.Flags().StringVar(&f.dir, "dir", "", "directory holding the archive's slices")
	cmd.Flags().StringVarP(&f.firstSize, "first-slice-size", "s", "", "first slice size")
	cmd.Flags().StringVarP(&f.nextSize, "next-slice-size", "S", "", "subsequent slice size")
	cmd.Flags().StringVarP(&f.password, "key", "K", "", "archive passphrase")
	return cmd
}

func runList(f *archiveFlags) error {
	a, tree, err := openArchiveForRead(f)
	if err != nil {
		return err
	}
	tree.ResetRead()
	depth := 0
	for {
		e, ok := tree.Read()
		if !ok {
			break
		}
		if _, isEod := e.(catalog.Eod); isEod {
			depth--
			continue
		}
		fmt.Printf("%s%c %s\n", indent(depth), e.Signature(), entryLabel(e))
		if _, isDir := e.(*catalog.Directory); isDir {
			depth++
		}
	}
	return a.Terminate()
}

func indent(depth int) string {
	s := ""
	for i := 0; i < depth; i++ {
		s += "  "
	}
	return s
}

func entryLabel(e catalog.Entry) string {
	switch v := e.(type) {
	case *catalog.Directory:
		return v.Name
	case *catalog.File:
		return v.Name
	case *catalog.Symlink:
		return fmt.Sprintf("%s -> %s", v.Name, v.Target)
	case *catalog.Mirage:
		return v.Name + " (hard link)"
	case *catalog.Deleted:
		return v.Name + " (removed)"
	case catalog.Ignored:
		return v.Name + " (ignored)"
	case catalog.IgnoredDir:
		return v.Name + " (ignored dir)"
	case *catalog.CharDev:
		return v.Name
	case *catalog.BlockDev:
		return v.Name
	case *catalog.Pipe:
		return v.Name
	case *catalog.Socket:
		return v.Name
	case *catalog.Door:
		return v.Name
	default:
		return ""
	}
}
