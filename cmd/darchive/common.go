package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edrusb/darchive/overwrite"
	"github.com/edrusb/darchive/stack/compress"
	"github.com/edrusb/darchive/stack/slice"
)

// archiveFlags is the -R/-s/-S/-z/-K/-X/-I/-P/-g/--nodump flag set every
// subcommand that opens or creates an archive shares, per §6's "CLI
// surface" flag list.
type archiveFlags struct {
	root       string
	basename   string
	dir        string
	firstSize  string
	nextSize   string
	compress   string
	password   string
	refArchive string
	refPass    string
	hook       string
	exclude    []string
	include    []string
	pathExclude []string
	pathInclude []string
	includeFile string
	noOverwrite  bool
	warnOverwrite bool
	recordEmptyDirs bool
	sameFilesystem  bool
	mtimeOnly       bool
	nodump          bool
}

// loadIncludeFile reads one glob pattern per line from f.includeFile
// (resolved against DAR_DCF_PATH, per §6's environment section) and
// appends them to f.include.
func (f *archiveFlags) loadIncludeFile() error {
	if f.includeFile == "" {
		return nil
	}
	file, err := os.Open(resolveIncludePath(f.includeFile))
	if err != nil {
		return err
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f.include = append(f.include, line)
	}
	return scanner.Err()
}

func (f *archiveFlags) sliceParams() (slice.Params, error) {
	first, err := parseSize(f.firstSize)
	if err != nil {
		return slice.Params{}, err
	}
	next, err := parseSize(f.nextSize)
	if err != nil {
		return slice.Params{}, err
	}
	dir := f.dir
	base := f.basename
	if dir == "" {
		dir = filepath.Dir(base)
		base = filepath.Base(base)
	}
	hook := f.hook
	if hook != "" {
		hook = resolveHookPath(hook)
	}
	return slice.Params{Basename: base, Extension: "dar", Dir: dir, FirstSize: first, NextSize: next, Hook: hook}, nil
}

// parseSize parses a -s/-S slice-size argument, historically expressed
// as a byte count with an optional k/M/G suffix. An empty string means
// "unsplit" (FirstSize == 0, piped/unlimited mode).
func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult, s = 1024, s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		mult, s = 1024*1024, s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		mult, s = 1024*1024*1024, s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}

// compressionAlgo parses -z[level]'s algorithm letter (n/z/y/other
// single ASCII letters per §6); the optional level suffix is accepted
// and ignored, since none of the wired codecs expose a tunable level
// through compress.Codec.
func compressionAlgo(spec string) compress.Algo {
	if spec == "" {
		return compress.AlgoNone
	}
	switch spec[0] {
	case 'n':
		return compress.AlgoNone
	case 'z':
		return compress.AlgoGzip
	case 'l':
		return compress.AlgoLZ4
	case 'y', 'x':
		return compress.AlgoXZ
	default:
		return compress.AlgoGzip
	}
}

// overwritePolicy maps -n to a Constant overwrite.Action; the
// default (no -n) overwrites unconditionally and without warning,
// matching the walkers' own zero-value Options default. -w is not
// consulted: it yields the same policy as the default.
func (f *archiveFlags) overwritePolicy() overwrite.Action {
	switch {
	case f.noOverwrite:
		return overwrite.Constant{Data: overwrite.DataPreserve, EA: overwrite.EAPreserve}
	default:
		return overwrite.Constant{Data: overwrite.DataOverwrite, EA: overwrite.EAOverwrite}
	}
}
