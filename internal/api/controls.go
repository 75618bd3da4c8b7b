package api

import (
	"net/http"

	"github.com/nerrad567/gridlink-core/internal/directory"
	"github.com/nerrad567/gridlink-core/internal/resource"
)

// handleCreateControl handles POST /derp_P_derc.
func (s *Server) handleCreateControl(w http.ResponseWriter, r *http.Request, program int) {
	var ctl resource.DERControl
	if err := decodeJSON(r, &ctl); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	created, err := s.dir.CreateControl(program, &ctl)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	w.Header().Set("Location", created.Href)
	writeJSON(w, http.StatusCreated, created)
}

// handleControlStatus handles PUT /derp_P_derc_C with a status command.
func (s *Server) handleControlStatus(w http.ResponseWriter, r *http.Request, program, control int) {
	var cmd directory.StatusCommand
	if err := decodeJSON(r, &cmd); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	updated, err := s.dir.ApplyStatusCommand(program, control, cmd)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
