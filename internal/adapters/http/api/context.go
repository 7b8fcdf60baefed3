package api

import (
	"net/http"

	"github.com/okian/hogu/internal/domain/eventctx"
)

func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	var u eventctx.Update
	if err := decode(r, &u); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.cmds.SetContext(r.Context(), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, c)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	c, err := s.cmds.Context(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, c)
}

func (s *Server) handleClearContext(w http.ResponseWriter, r *http.Request) {
	if err := s.cmds.ClearContext(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleStartIngestion(w http.ResponseWriter, r *http.Request) {
	if err := s.cmds.StartIngestion(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, s.ingestionState())
}

func (s *Server) handleStopIngestion(w http.ResponseWriter, r *http.Request) {
	if err := s.cmds.StopIngestion(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, s.ingestionState())
}

func (s *Server) handleIngestionState(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.ingestionState())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.cmds.Status())
}

func (s *Server) ingestionState() ingestionResponse {
	return ingestionResponse{
		State: s.cmds.IngestionState().String(),
		Port:  s.cmds.IngestionPort(),
	}
}
