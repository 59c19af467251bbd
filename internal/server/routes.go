package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/zsiec/ingex/internal/errors"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/registry"
	"github.com/zsiec/ingex/pkg/version"
)

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.respond(w, r, http.StatusOK, version.GetInfo())
}

// handleSession reports the local playback session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		s.writeError(w, r, apperrors.NewNotFoundError("session"))
		return
	}
	s.respond(w, r, http.StatusOK, s.deps.Session.Session())
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		s.writeError(w, r, apperrors.NewNotFoundError("session"))
		return
	}
	entries := s.deps.Session.Entries()
	s.respond(w, r, http.StatusOK, map[string]interface{}{
		"connections": entries,
		"count":       len(entries),
	})
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pools == nil {
		s.writeError(w, r, apperrors.NewServiceDownError("decoder pools"))
		return
	}
	s.respond(w, r, http.StatusOK, map[string]interface{}{
		"library": s.deps.Pools.Library().Name(),
		"pools":   s.deps.Pools.Stats(),
	})
}

// handleListSessions lists every session in the shared registry, which with
// Redis includes other players.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		s.writeError(w, r, apperrors.NewServiceDownError("session registry"))
		return
	}
	sessions, err := s.deps.Registry.List(r.Context())
	if err != nil {
		s.writeError(w, r, apperrors.WrapInternalError(err, "failed to list sessions"))
		return
	}
	s.respond(w, r, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		s.writeError(w, r, apperrors.NewServiceDownError("session registry"))
		return
	}
	id := mux.Vars(r)["id"]
	log := logger.FromContext(r.Context(), s.logger).WithField("session_id", id)
	session, err := s.deps.Registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrSessionNotFound) {
			log.Debug("Session not in registry")
			s.writeError(w, r, apperrors.NewNotFoundError("session "+id))
			return
		}
		s.writeError(w, r, apperrors.WrapInternalError(err, "failed to get session"))
		return
	}
	s.respond(w, r, http.StatusOK, session)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := s.writeJSON(w, status, data); err != nil {
		logger.FromContext(r.Context(), s.logger).WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
