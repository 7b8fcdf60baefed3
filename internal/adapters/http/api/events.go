package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
)

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	f, err := eventFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	evs, err := s.cmds.Events(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, evs)
}

func eventFilter(r *http.Request) (model.EventFilter, error) {
	q := r.URL.Query()
	f := model.EventFilter{
		SessionID:  q.Get("session"),
		MatchID:    q.Get("match"),
		Descending: q.Get("order") == "desc",
	}
	var err error
	if v := q.Get("kind"); v != "" {
		if f.Kind, err = protocol.ParseKind(v); err != nil {
			return f, err
		}
	}
	if v := q.Get("status"); v != "" {
		if f.Status, err = protocol.ParseStatus(v); err != nil {
			return f, err
		}
	}
	if f.Since, err = queryTime(r, "since"); err != nil {
		return f, err
	}
	if f.Until, err = queryTime(r, "until"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ev, err := s.cmds.Event(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, ev)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	status, err := protocol.ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.ChangedBy) == "" {
		writeError(w, fmt.Errorf("%w: missing changed_by", ErrBadRequest))
		return
	}
	change, err := s.cmds.UpdateStatus(r.Context(), id, status, req.ChangedBy, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, change)
}

func (s *Server) handleStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h, err := s.cmds.StatusHistory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, h)
}
