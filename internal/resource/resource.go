package resource

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Resource is implemented by every addressable object held in the directory.
//
// All implementations use pointer receivers, and Kind never dereferences
// its receiver, so a nil *T still reports its kind.
type Resource interface {
	GetHref() string
	SetHref(href string)
	GetMRID() string
	Kind() Kind
}

// Meta carries the address shared by every resource.
type Meta struct {
	Href string `json:"href,omitempty"`
}

// GetHref returns the resource address.
func (m *Meta) GetHref() string { return m.Href }

// SetHref replaces the resource address.
func (m *Meta) SetHref(href string) { m.Href = href }

// GetMRID returns "" for resources without an identity.
func (*Meta) GetMRID() string { return "" }

// IdentifiedObject is embedded by resources that carry an mRID.
type IdentifiedObject struct {
	Meta
	MRID        string `json:"mRID,omitempty"`
	Description string `json:"description,omitempty"`
	Version     int    `json:"version,omitempty"`
}

// GetMRID returns the master resource identifier.
func (o *IdentifiedObject) GetMRID() string { return o.MRID }

// Link points at a single resource.
type Link struct {
	Href string `json:"href"`
}

// ListLink points at a list container and carries its element count.
type ListLink struct {
	Href string `json:"href"`
	All  int    `json:"all"`
}

// NewLink returns a Link to href.
func NewLink(href string) *Link {
	return &Link{Href: href}
}

// NewListLink returns a ListLink to href with all elements.
func NewListLink(href string, all int) *ListLink {
	return &ListLink{Href: href, All: all}
}

// DateTimeInterval is a window of Duration seconds beginning at Start
// (seconds since the epoch).
type DateTimeInterval struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

// End returns the first second after the interval. A window running past
// the largest int64 ends there.
func (i DateTimeInterval) End() int64 {
	if i.Overflows() {
		return math.MaxInt64
	}
	return i.Start + i.Duration
}

// Overflows reports whether Start+Duration does not fit in an int64.
func (i DateTimeInterval) Overflows() bool {
	return i.Duration > 0 && i.Start > math.MaxInt64-i.Duration
}

// Contains reports whether t falls inside [Start, Start+Duration).
func (i DateTimeInterval) Contains(t int64) bool {
	return t >= i.Start && t < i.End()
}

// Overlaps reports whether the two windows share at least one second.
func (i DateTimeInterval) Overlaps(o DateTimeInterval) bool {
	return i.Start < o.End() && o.Start < i.End()
}

// NewMRID returns a random 128-bit identifier as 32 upper-case hex digits.
func NewMRID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// KindOf returns the kind reported by T's zero value.
func KindOf[T Resource]() Kind {
	var zero T
	return zero.Kind()
}

// As converts r to T, failing with ErrKindMismatch when r is of another kind.
func As[T Resource](r Resource) (T, error) {
	v, ok := r.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: have %s, want %s", ErrKindMismatch, kindName(r), zero.Kind())
	}
	return v, nil
}

func kindName(r Resource) string {
	if r == nil {
		return "<nil>"
	}
	return string(r.Kind())
}
