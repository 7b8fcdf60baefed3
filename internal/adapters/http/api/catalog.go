package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/hogu/internal/domain/protocol"
)

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.cmds.Statistics(r.Context(), r.URL.Query().Get("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, st)
}

func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := s.cmds.Unknown(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, recs)
}

func (s *Server) handleAnnotateUnknown(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	hash := mux.Vars(r)["hash"]
	if err := s.cmds.AnnotateUnknown(r.Context(), hash, req.SuggestedKind, req.Notes); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var kind protocol.Kind
	if v := q.Get("kind"); v != "" {
		k, err := protocol.ParseKind(v)
		if err != nil {
			writeError(w, err)
			return
		}
		kind = k
	}
	rules, err := s.cmds.Rules(r.Context(), kind, q.Get("version"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, rules)
}
