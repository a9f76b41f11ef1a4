// Package pathval implements the archive's normalised path value type,
// grounded on original_source/path.hpp: an ordered sequence of nonempty
// components, either absolute (leading separator) or relative, never
// empty.
package pathval

import (
	"strings"

	"github.com/edrusb/darchive/errs"
)

// Path is a normalised filesystem path.
type Path struct {
	components []string
	absolute   bool
}

// New parses s into a Path, applying the two normalisation rules: "."
// components are dropped, and ".." cancels the previous component unless
// that previous component is itself "..".
func New(s string) (Path, error) {
	if s == "" {
		return Path{}, errs.New(errs.KindRange, "pathval.New: empty string is not a valid path")
	}
	absolute := strings.HasPrefix(s, "/")
	parts := strings.Split(s, "/")
	var out []string
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		if p == ".." {
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
				continue
			}
			if absolute {
				// ".." above the root is dropped, matching the original's
				// behaviour of never escaping an absolute root.
				continue
			}
		}
		out = append(out, p)
	}
	if absolute && len(out) == 0 {
		return Path{components: nil, absolute: true}, nil
	}
	return Path{components: out, absolute: absolute}, nil
}

// MustNew is New but panics with New's error; for literals known valid
// at compile time.
func MustNew(s string) Path {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsRelative reports whether the path lacks a leading separator.
func (p Path) IsRelative() bool { return !p.absolute }

// IsAbsolute reports whether the path has a leading separator.
func (p Path) IsAbsolute() bool { return p.absolute }

// Basename returns the last component, or "" for the root.
func (p Path) Basename() string {
	if len(p.components) == 0 {
		return ""
	}
	return p.components[len(p.components)-1]
}

// Degree is the number of path components, plus one if absolute (matching
// the original's `degre()`).
func (p Path) Degree() int {
	n := len(p.components)
	if p.absolute {
		n++
	}
	return n
}

// Pop removes and returns the last component. It returns ok=false if there
// is no component to remove (the path is already the root or empty
// relative path).
func (p Path) Pop() (rest Path, removed string, ok bool) {
	if len(p.components) == 0 {
		return p, "", false
	}
	removed = p.components[len(p.components)-1]
	rest = Path{components: append([]string{}, p.components[:len(p.components)-1]...), absolute: p.absolute}
	return rest, removed, true
}

// PopFront removes and returns the first component. It returns ok=false
// only when there is no component to remove. The returned rest is always
// relative, so for an absolute path the first call makes the path
// relative.
func (p Path) PopFront() (rest Path, removed string, ok bool) {
	if len(p.components) == 0 {
		return p, "", false
	}
	removed = p.components[0]
	rest = Path{components: append([]string{}, p.components[1:]...), absolute: false}
	return rest, removed, true
}

// Add concatenates arg as a sub-path of p. arg must be relative.
func (p Path) Add(arg Path) (Path, error) {
	if arg.absolute {
		return Path{}, errs.New(errs.KindRange, "pathval.Add: right-hand side must be relative")
	}
	out := Path{components: append(append([]string{}, p.components...), arg.components...), absolute: p.absolute}
	return out, nil
}

// AddName is Add for a single bare component, without requiring the
// caller build a Path first.
func (p Path) AddName(name string) (Path, error) {
	if name == "" || name == "." || strings.Contains(name, "/") {
		return Path{}, errs.Newf(errs.KindRange, "pathval.AddName: invalid component %q", name)
	}
	return Path{components: append(append([]string{}, p.components...), name), absolute: p.absolute}, nil
}

// IsSubdirOf reports whether p is (strictly or not) contained in other's
// tree, i.e. other's components are a prefix of p's.
func (p Path) IsSubdirOf(other Path) bool {
	if p.absolute != other.absolute {
		return false
	}
	if len(other.components) > len(p.components) {
		return false
	}
	for i, c := range other.components {
		if p.components[i] != c {
			return false
		}
	}
	return true
}

// Equal compares two paths component-wise.
func (p Path) Equal(other Path) bool {
	if p.absolute != other.absolute || len(p.components) != len(other.components) {
		return false
	}
	for i := range p.components {
		if p.components[i] != other.components[i] {
			return false
		}
	}
	return true
}

// Display renders the path back to its string form.
func (p Path) Display() string {
	joined := strings.Join(p.components, "/")
	if p.absolute {
		return "/" + joined
	}
	if joined == "" {
		return "."
	}
	return joined
}

// Components returns a copy of the ordered component list.
func (p Path) Components() []string {
	return append([]string{}, p.components...)
}
