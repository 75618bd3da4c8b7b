package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/gridlink-core/internal/directory"
	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/resource"
	"github.com/nerrad567/gridlink-core/internal/store"
)

// parseQuery reads the paging parameters: s (start), a (after) and
// l (limit), plus the optional sort and reverse. A request without l gets
// the configured default limit.
func (s *Server) parseQuery(r *http.Request) (store.Query, error) {
	values := r.URL.Query()
	q := store.Query{Limit: s.cfg.DefaultLimit}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"s", &q.Start},
		{"a", &q.After},
		{"l", &q.Limit},
	} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return store.Query{}, fmt.Errorf("query parameter %s must be a non-negative integer", p.name)
		}
		*p.dst = n
	}

	if raw := values.Get("sort"); raw != "" {
		q.SortBy = strings.Split(raw, ",")
	}
	if raw := values.Get("reverse"); raw != "" {
		reverse, err := strconv.ParseBool(raw)
		if err != nil {
			return store.Query{}, fmt.Errorf("query parameter reverse must be a boolean")
		}
		q.Reverse = reverse
	}
	return q, nil
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	return decodeStrict(r.Body, v)
}

// decodeStrict decodes one JSON value from rd, rejecting unknown fields.
func decodeStrict(rd io.Reader, v any) error {
	dec := json.NewDecoder(rd)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleGet resolves the request path as an href.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	v, err := s.dir.Resolve(r.URL.Path, q)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handlePut replaces a client-writable singleton, or applies a status
// command when the path names a DER control.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if program, control, err := href.ParseControl(path); err == nil {
		s.handleControlStatus(w, r, program, control)
		return
	}

	current, err := s.dir.Resolve(path, store.Query{Limit: 1})
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	existing, ok := current.(resource.Resource)
	if !ok {
		s.writeDirectoryError(w, r, fmt.Errorf("%w: %s", directory.ErrNotWritable, path))
		return
	}

	next, err := resource.New(existing.Kind())
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	if err := decodeJSON(r, next); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	next.SetHref("")

	if err := s.dir.Put(path, next); err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePost dispatches creation requests by target href.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	h, err := href.Parse(r.URL.Path)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}

	switch {
	case h.Count() == 1 && h.Root() == href.MirrorRoot:
		s.handlePostMirrorUsagePoint(w, r)
	case h.Count() == 2 && h.Root() == href.MirrorRoot:
		s.handlePostMirrorMeterReading(w, r, h.String())
	case h.Count() == 3 && h.Root() == href.MirrorRoot:
		s.handlePostMirrorReadingSet(w, r, h.String())
	case h.Count() == 3 && h.Root() == href.DERProgramRoot && h.At(2) == href.ControlList:
		program, _ := h.Index(1) //nolint:errcheck // position 1 is an index for a parsed href
		s.handleCreateControl(w, r, program)
	default:
		s.writeDirectoryError(w, r, fmt.Errorf("%w: cannot post to %s", directory.ErrNotWritable, h))
	}
}

// writeCreated answers a mirror post: 201 with Location for a new
// resource, 204 with Location for an update.
func writeCreated(w http.ResponseWriter, res directory.MirrorResult) {
	w.Header().Set("Location", res.Location)
	if res.Created {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
