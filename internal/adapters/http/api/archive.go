package api

import (
	"fmt"
	"net/http"
	"time"
)

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	n, err := s.cmds.Archive(r.Context(), req.Days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, countResponse{Count: n})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid start; must be RFC3339", ErrBadRequest))
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid end; must be RFC3339", ErrBadRequest))
		return
	}
	n, err := s.cmds.Restore(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, countResponse{Count: n})
}
