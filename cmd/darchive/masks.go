package main

import "github.com/edrusb/darchive/mask"

// buildGlobMask folds a set of -X/-I (or -P/-g) glob patterns into one
// mask, the CLI-level counterpart of mask.Or. An empty pattern set
// yields nil, which every walker's Options treats as mask.AlwaysTrue
// via its own nilOr helper.
func buildGlobMask(patterns []string) mask.Mask {
	if len(patterns) == 0 {
		return nil
	}
	or := &mask.Or{}
	for _, p := range patterns {
		or.Add(mask.Glob{Pattern: p})
	}
	return or
}

// nameMask combines -I (include) and -X (exclude) into the single mask
// a walker's NameMask expects: covered means "include", so an exclude
// match is inverted and conjoined with the include set.
func nameMask(include, exclude []string) mask.Mask {
	and := &mask.And{}
	if inc := buildGlobMask(include); inc != nil {
		and.Add(inc)
	}
	for _, x := range exclude {
		and.Add(mask.Not{Inner: mask.Glob{Pattern: x}})
	}
	if len(and.Members) == 0 {
		return nil
	}
	return and
}

// pathMask combines -g (include) and -P (exclude) the same way nameMask
// does for -I/-X: each value is a glob pattern matched against the
// entry's whole path relative to the root, not as a path prefix.
func pathMask(include, exclude []string) mask.Mask {
	return nameMask(include, exclude)
}
