// Command darchive is the CLI front-end named in §6: one subcommand per
// historical single-letter mode (-c/-x/-t/-d/-l/-C/-+), built as a
// cobra.Command tree per the pack's gcsfuse convention, driving the
// archive façade and walker packages underneath.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/edrusb/darchive/errs"
)

var verbose bool

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "darchive",
		Short:         "Disk archive backup, restore and catalogue engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every entry decision, not just warnings")
	root.AddCommand(
		newCreateCommand(),
		newExtractCommand(),
		newTestCommand(),
		newDiffCommand(),
		newListCommand(),
		newIsolateCommand(),
		newMergeCommand(),
	)
	return root
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.WarnLevel)
	}
	return l
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeOf(err))
	}
}

// exitCodeOf maps any error surfacing at the façade to the exit-code
// table in §6, defaulting to 1 (syntax/usage) for errors cobra itself
// raises (unknown flag, bad argument count) that never passed through
// errs.
func exitCodeOf(err error) int {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Kind().ExitCode()
	}
	return 1
}
