package href

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator is the only token separator in a resource address.
const Separator = "_"

// Href is a parsed resource address of the form
// segment[_index][_segment[_index]]...
//
// Tokens alternate collection name and decimal index, so "/derp_1_derc_2"
// has four segments: "/derp", "1", "derc", "2". Under the mirror family
// (MirrorRoot) every token after the usage point index is a literal key
// and the alternation is not enforced.
type Href struct {
	segments []string
}

// Parse splits path into segments and validates the grammar.
// Errors wrap ErrInvalidHref.
func Parse(path string) (Href, error) {
	if path == "" {
		return Href{}, fmt.Errorf("%w: empty path", ErrInvalidHref)
	}

	segments := strings.Split(path, Separator)
	literal := segments[0] == MirrorRoot

	for i, seg := range segments {
		if seg == "" {
			return Href{}, fmt.Errorf("%w: %q has an empty token at position %d", ErrInvalidHref, path, i)
		}

		switch {
		case i == 0:
			if !isName(strings.TrimPrefix(seg, "/")) {
				return Href{}, fmt.Errorf("%w: %q must start with a collection name", ErrInvalidHref, path)
			}
		case literal && i > 1:
			if !isName(seg) && !isIndex(seg) {
				return Href{}, fmt.Errorf("%w: %q has malformed key %q", ErrInvalidHref, path, seg)
			}
		case i%2 == 1:
			if !isIndex(seg) {
				return Href{}, fmt.Errorf("%w: %q expects an index at position %d, got %q", ErrInvalidHref, path, i, seg)
			}
		default:
			if !isName(seg) {
				return Href{}, fmt.Errorf("%w: %q expects a collection name at position %d, got %q", ErrInvalidHref, path, i, seg)
			}
		}
	}

	return Href{segments: segments}, nil
}

// MustParse is Parse for addresses built by this package; it panics on error.
func MustParse(path string) Href {
	h, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return h
}

// String re-joins the segments.
func (h Href) String() string {
	return strings.Join(h.segments, Separator)
}

// Count returns the number of segments.
func (h Href) Count() int {
	return len(h.segments)
}

// At returns the segment at depth i, or "" when out of range.
func (h Href) At(i int) string {
	if i < 0 || i >= len(h.segments) {
		return ""
	}
	return h.segments[i]
}

// Index returns the segment at depth i as an integer.
func (h Href) Index(i int) (int, error) {
	seg := h.At(i)
	if !isIndex(seg) {
		return 0, fmt.Errorf("%w: %q has no index at position %d", ErrInvalidHref, h.String(), i)
	}
	return strconv.Atoi(seg)
}

// HasIndex reports whether the last segment is an index, i.e. whether the
// address names one element rather than a whole collection.
func (h Href) HasIndex() bool {
	return len(h.segments) > 1 && isIndex(h.segments[len(h.segments)-1])
}

// LastIndex returns the trailing index when HasIndex is true.
func (h Href) LastIndex() (int, bool) {
	if !h.HasIndex() {
		return 0, false
	}
	n, err := strconv.Atoi(h.segments[len(h.segments)-1])
	return n, err == nil
}

// Join returns the address formed by the first k segments. For a leaf
// "/derp_1_derc_2", Join(3) is the containing list "/derp_1_derc".
func (h Href) Join(k int) string {
	if k > len(h.segments) {
		k = len(h.segments)
	}
	if k <= 0 {
		return ""
	}
	return strings.Join(h.segments[:k], Separator)
}

// Root returns the first segment, e.g. "/edev".
func (h Href) Root() string {
	return h.At(0)
}

// Build returns prefix_key. Stores use it so an element's address and its
// storage key always agree.
func Build(prefix string, key int) string {
	return prefix + Separator + strconv.Itoa(key)
}

// Join concatenates parts with Separator.
func Join(parts ...string) string {
	return strings.Join(parts, Separator)
}

func isIndex(s string) bool {
	if s == "" || len(s) > 18 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
