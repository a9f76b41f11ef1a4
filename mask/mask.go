// Package mask implements the composable predicate algebra used to decide
// which names and paths the backup/restore/merge walkers operate on.
// Grounded on original_source/mask.hpp (bool_mask, simple_mask, not_mask,
// et_mask/ou_mask, simple_path_mask, same_path_mask).
package mask

import (
	"path/filepath"
	"regexp"

	"github.com/edrusb/darchive/pathval"
)

// Mask is a predicate over a name or path expression.
type Mask interface {
	IsCovered(expression string) bool
}

// Bool is a mask that always returns a constant value.
type Bool struct{ Value bool }

func (b Bool) IsCovered(string) bool { return b.Value }

// AlwaysTrue and AlwaysFalse are the two constant masks.
func AlwaysTrue() Mask  { return Bool{true} }
func AlwaysFalse() Mask { return Bool{false} }

// Glob is a shell-wildcard mask ("simple_mask" in the original), matched
// with path.Match semantics (`*`, `?`, `[...]`).
type Glob struct{ Pattern string }

func (g Glob) IsCovered(expression string) bool {
	ok, err := filepath.Match(g.Pattern, expression)
	return err == nil && ok
}

// Regex is a regular-expression mask.
type Regex struct{ re *regexp.Regexp }

// NewRegex compiles a regular expression mask.
func NewRegex(pattern string) (Regex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Regex{}, err
	}
	return Regex{re: re}, nil
}

func (r Regex) IsCovered(expression string) bool { return r.re.MatchString(expression) }

// Not negates an inner mask.
type Not struct{ Inner Mask }

func (n Not) IsCovered(expression string) bool { return !n.Inner.IsCovered(expression) }

// And is a conjunction of masks ("et_mask"): true only if every member
// mask covers the expression. An empty And is vacuously true, matching
// the original's empty-vector behaviour.
type And struct{ Members []Mask }

func (a *And) Add(m Mask) { a.Members = append(a.Members, m) }

func (a And) IsCovered(expression string) bool {
	for _, m := range a.Members {
		if !m.IsCovered(expression) {
			return false
		}
	}
	return true
}

// Or is a disjunction of masks ("ou_mask"): true if any member mask
// covers the expression. An empty Or is vacuously false.
type Or struct{ Members []Mask }

func (o *Or) Add(m Mask) { o.Members = append(o.Members, m) }

func (o Or) IsCovered(expression string) bool {
	for _, m := range o.Members {
		if m.IsCovered(expression) {
			return true
		}
	}
	return false
}

// PathPrefix is covered by any expression whose path is contained in the
// reference path's subtree ("simple_path_mask").
type PathPrefix struct{ Root pathval.Path }

func (p PathPrefix) IsCovered(expression string) bool {
	candidate, err := pathval.New(expression)
	if err != nil {
		return false
	}
	return candidate.IsSubdirOf(p.Root)
}

// SamePath matches only the exact path string ("same_path_mask").
type SamePath struct{ Path string }

func (s SamePath) IsCovered(expression string) bool { return expression == s.Path }
