package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nerrad567/gridlink-core/internal/directory"
	"github.com/nerrad567/gridlink-core/internal/resource"
)

// handlePostMirrorUsagePoint handles POST /mup.
func (s *Server) handlePostMirrorUsagePoint(w http.ResponseWriter, r *http.Request) {
	var mup resource.MirrorUsagePoint
	if err := decodeJSON(r, &mup); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := s.dir.CreateMirrorUsagePoint(&mup)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeCreated(w, res)
}

// handlePostMirrorMeterReading handles POST /mup_N. The body is one
// MirrorMeterReading, or a MirrorMeterReadingList stored in one go.
func (s *Server) handlePostMirrorMeterReading(w http.ResponseWriter, r *http.Request, mupHref string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, fmt.Sprintf("reading request body: %v", err))
		return
	}

	var res directory.MirrorResult
	if isReadingList(body) {
		var list resource.MirrorMeterReadingList
		if err := decodeStrict(bytes.NewReader(body), &list); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		res, err = s.dir.CreateMirrorMeterReadings(r.Context(), mupHref, &list)
	} else {
		var mmr resource.MirrorMeterReading
		if err := decodeStrict(bytes.NewReader(body), &mmr); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		res, err = s.dir.CreateMirrorMeterReading(r.Context(), mupHref, &mmr)
	}
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeCreated(w, res)
}

// isReadingList reports whether body is a MirrorMeterReadingList, which is
// the only mirror body with a top-level "MirrorMeterReading" array.
func isReadingList(body []byte) bool {
	var top map[string]json.RawMessage
	if json.Unmarshal(body, &top) != nil {
		return false
	}
	raw, ok := top["MirrorMeterReading"]
	return ok && len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '['
}

// handlePostMirrorReadingSet handles POST /mup_N_K.
func (s *Server) handlePostMirrorReadingSet(w http.ResponseWriter, r *http.Request, mmrHref string) {
	var set resource.MirrorReadingSet
	if err := decodeJSON(r, &set); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := s.dir.AddMirrorReadingSet(r.Context(), mmrHref, &set)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeCreated(w, res)
}
