package main

import (
	"os"
	"path/filepath"
	"strings"
)

// resolveHome expands a leading "~" against HOME, the way the original
// resolves user-hook and include-file paths.
func resolveHome(path string) string {
	if path == "~" {
		return os.Getenv("HOME")
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(os.Getenv("HOME"), path[2:])
	}
	return path
}

// searchPath walks DAR_DCF_PATH (include-files) or DAR_DUC_PATH
// (user-command hooks) looking for name, falling back to name itself
// (interpreted relative to the current directory) when the variable is
// unset or the name isn't found in it.
func searchPath(envVar, name string) string {
	name = resolveHome(name)
	if filepath.IsAbs(name) {
		return name
	}
	for _, dir := range filepath.SplitList(os.Getenv(envVar)) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}

func resolveHookPath(name string) string { return searchPath("DAR_DUC_PATH", name) }

func resolveIncludePath(name string) string { return searchPath("DAR_DCF_PATH", name) }
