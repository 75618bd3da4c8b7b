package directory

import (
	"fmt"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/resource"
	"github.com/nerrad567/gridlink-core/internal/store"
)

// readingSetOrder sorts "/upt_N_mr_K_rs" lists when the request names no
// order of its own. Newest first.
var readingSetOrder = []string{"timePeriod.start"}

// pager is the paging side of a Store.
type pager interface {
	FetchPage(into *resource.ListResponse, start, after, limit int)
}

// Resolve returns what lives at path without changing anything. An element
// address yields a resource.Resource; a collection address yields a
// *resource.ListResponse holding the page selected by q. A reading type
// address ("/upt_N_mr_K_rt") yields a *resource.ReadingType. Reading set
// lists are ordered newest first by timePeriod.start unless q sorts.
func (d *Directory) Resolve(path string, q store.Query) (any, error) {
	h, err := href.Parse(path)
	if err != nil {
		return nil, err
	}

	switch h.Root() {
	case href.TimeRoot:
		if h.Count() == 1 {
			return d.Time(), nil
		}
	case href.DeviceCapabilityRoot:
		return resolveStore(h, d.Capabilities, d.Capabilities.Fetch, q)
	case href.EndDeviceRoot:
		if h.Count() <= 2 {
			return resolveStore(h, d.EndDevices, d.EndDevices.Fetch, q)
		}
	case href.FSARoot:
		if h.Count() <= 2 {
			return resolveStore(h, d.FSAs, d.FSAs.Fetch, q)
		}
	case href.MirrorRoot:
		return d.resolveMirror(h, q)
	case href.UsagePointRoot:
		if h.Count() == 5 && h.At(4) == readingTypeLeaf {
			mupKey, _ := h.Index(1) //nolint:errcheck // validated by Parse
			key, _ := h.Index(3)    //nolint:errcheck // validated by Parse
			return d.readingType(mupKey, key)
		}
		if h.Count() == 5 && h.At(4) == readingSetList && len(q.SortBy) == 0 {
			q.SortBy, q.Reverse = readingSetOrder, true
		}
	}

	if r, err := d.Hrefs.Get(path); err == nil {
		return r, nil
	}
	if d.Lists.HasList(path) {
		return d.Lists.GetResourceList(path, q)
	}
	if key, ok := h.LastIndex(); ok {
		if parent := h.Join(h.Count() - 1); d.Lists.HasList(parent) {
			return d.Lists.Get(parent, key)
		}
	}
	if derSubresources[h.At(h.Count()-1)] {
		return d.singleton(h)
	}
	return nil, fmt.Errorf("%w: %s", store.ErrNotFound, path)
}

// resolveStore serves "/root" as a page and "/root_N" as one element.
func resolveStore[T resource.Resource](h href.Href, s pager, fetch func(int) (T, error), q store.Query) (any, error) {
	switch h.Count() {
	case 1:
		list := &resource.ListResponse{Href: h.String()}
		s.FetchPage(list, q.Start, q.After, q.Limit)
		return list, nil
	case 2:
		key, _ := h.Index(1) //nolint:errcheck // validated by Parse
		return fetch(key)
	default:
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, h)
	}
}

// resolveMirror serves the mirror family: "/mup" is the usage point list,
// "/mup_N" one usage point and "/mup_N_K" one of its readings.
func (d *Directory) resolveMirror(h href.Href, q store.Query) (any, error) {
	switch h.Count() {
	case 1:
		list, err := d.Lists.GetResourceList(href.MirrorRoot, q)
		if err != nil {
			return nil, err
		}
		list.PollRate = d.mirrorPostRate
		return list, nil
	case 2:
		key, _ := h.Index(1) //nolint:errcheck // validated by Parse
		return d.Lists.Get(href.MirrorRoot, key)
	case 3:
		key, err := href.MirrorKey(h.String())
		if err != nil {
			return nil, err
		}
		return d.Lists.Get(h.Join(2), key)
	default:
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, h)
	}
}
