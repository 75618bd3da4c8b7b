package store

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/nerrad567/gridlink-core/internal/resource"
)

// fieldPath is a resolved "field" or "field.subfield" lookup.
type fieldPath struct {
	raw   string
	outer []int
	inner []int // nil for single-segment paths
}

// lookupField finds a struct field by Go name or JSON name, ignoring case.
// Fields promoted from embedded structs are included.
func lookupField(t reflect.Type, name string) ([]int, reflect.Type, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil, false
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous {
			if idx, ft, ok := lookupField(f.Type, name); ok {
				return append([]int{i}, idx...), ft, true
			}
			continue
		}
		if strings.EqualFold(f.Name, name) || strings.EqualFold(wireName(f), name) {
			return []int{i}, f.Type, true
		}
	}
	return nil, nil, false
}

func wireName(f reflect.StructField) string {
	tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	return tag
}

// resolveSortKeys validates paths against kind and resolves their indices.
func resolveSortKeys(kind resource.Kind, paths []string) ([]fieldPath, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	proto, err := resource.New(kind)
	if err != nil {
		return nil, err
	}
	t := reflect.TypeOf(proto)

	out := make([]fieldPath, 0, len(paths))
	for _, p := range paths {
		parts := strings.Split(p, ".")
		if len(parts) > 2 || slices.Contains(parts, "") {
			return nil, fmt.Errorf("%w: %q supports at most one level of nesting", ErrInvalidSortKey, p)
		}

		outer, ot, ok := lookupField(t, parts[0])
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrInvalidSortKey, kind, parts[0])
		}
		fp := fieldPath{raw: p, outer: outer}
		leaf := ot

		if len(parts) == 2 {
			inner, it, ok := lookupField(ot, parts[1])
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s has no field %q", ErrInvalidSortKey, kind, parts[0], parts[1])
			}
			fp.inner = inner
			leaf = it
		}

		if !orderable(leaf) {
			return nil, fmt.Errorf("%w: %q is not a sortable value", ErrInvalidSortKey, p)
		}
		out = append(out, fp)
	}
	return out, nil
}

func orderable(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// value returns the field addressed by p on r, or false when a pointer on
// the way is nil.
func (p fieldPath) value(r resource.Resource) (reflect.Value, bool) {
	v, ok := deref(reflect.ValueOf(r))
	if !ok {
		return reflect.Value{}, false
	}
	v = v.FieldByIndex(p.outer)
	if p.inner != nil {
		if v, ok = deref(v); !ok {
			return reflect.Value{}, false
		}
		v = v.FieldByIndex(p.inner)
	}
	return deref(v)
}

func deref(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, true
}

func compareValues(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.Bool:
		return cmp.Compare(boolInt(a.Bool()), boolInt(b.Bool()))
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	default:
		return 0
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sortResources applies each path as a stable sort pass. A pass where any
// element lacks the key (a nil outer field) leaves the order unchanged.
func sortResources(items []resource.Resource, paths []fieldPath, reverse bool) {
	for _, p := range paths {
		keys := make([]reflect.Value, len(items))
		complete := true
		for i, r := range items {
			v, ok := p.value(r)
			if !ok {
				complete = false
				break
			}
			keys[i] = v
		}
		if !complete {
			continue
		}

		order := make([]int, len(items))
		for i := range order {
			order[i] = i
		}
		slices.SortStableFunc(order, func(i, j int) int {
			c := compareValues(keys[i], keys[j])
			if reverse {
				return -c
			}
			return c
		})

		sorted := make([]resource.Resource, len(items))
		for i, idx := range order {
			sorted[i] = items[idx]
		}
		copy(items, sorted)
	}
}

// matchesProperty reports whether r has a field called name equal to value.
// A link field matches when its href equals value.
func matchesProperty(r resource.Resource, name string, value any) bool {
	v, ok := deref(reflect.ValueOf(r))
	if !ok {
		return false
	}
	idx, _, found := lookupField(v.Type(), name)
	if !found {
		return false
	}
	field, ok := deref(v.FieldByIndex(idx))
	if !ok {
		return value == nil
	}

	switch link := field.Interface().(type) {
	case resource.Link:
		return link.Href == value
	case resource.ListLink:
		return link.Href == value
	}

	want := reflect.ValueOf(value)
	if !want.IsValid() {
		return false
	}
	if want.Type() != field.Type() {
		if !numeric(want.Kind()) || !numeric(field.Kind()) {
			return false
		}
		want = want.Convert(field.Type())
	}
	if !field.Comparable() {
		return false
	}
	return field.Equal(want)
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
