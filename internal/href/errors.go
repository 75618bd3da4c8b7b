package href

import "errors"

// ErrInvalidHref is returned for addresses that do not follow the
// segment[_index]... grammar.
var ErrInvalidHref = errors.New("href: invalid href")
