package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/hyperjump/notevec/internal/embedding"
	"github.com/hyperjump/notevec/internal/fileid"
	"github.com/hyperjump/notevec/internal/indexer"
	"github.com/hyperjump/notevec/internal/models"
	"github.com/hyperjump/notevec/internal/search"
	"github.com/hyperjump/notevec/internal/vault"
	"go.uber.org/zap"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, response)
	case errors.Is(err, search.ErrIndexEmpty):
		s.respondJSON(w, http.StatusOK, &models.SearchResponse{
			Query:   query.Query,
			Results: []*models.SearchHit{},
			Message: "index is empty, rebuild the vault to search it",
		})
	case errors.Is(err, search.ErrQueryTooShort), errors.Is(err, models.ErrInvalidQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, search.ErrNotReady):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, embedding.ErrServiceUnavailable),
		errors.Is(err, embedding.ErrBadStatus),
		errors.Is(err, embedding.ErrMalformedResponse):
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if !s.StartRebuild() {
		s.respondError(w, http.StatusConflict, indexer.ErrIndexingInProgress.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if !s.indexer.Cancel() {
		s.respondError(w, http.StatusConflict, "no indexing in progress")
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.Clear(r.Context()); err != nil {
		if errors.Is(err, indexer.ErrIndexingInProgress) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("clear index failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type documentRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	docPath := fileid.Normalize(req.Path)
	s.logger.Debug("index document request", zap.String("path", docPath))
	if err := s.indexer.IndexDocument(r.Context(), docPath); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.respondError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, fileid.ErrOutsideRoot), errors.Is(err, vault.ErrUnsupported):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, indexer.ErrIndexingInProgress):
			s.respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, indexer.ErrNotReady):
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.logger.Error("indexing failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"path": docPath, "status": "indexed"})
}

func (s *Server) handleRemoveDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		var body documentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	docPath := fileid.Normalize(path)
	s.logger.Debug("remove document request", zap.String("path", docPath))
	if err := s.indexer.RemoveDocument(r.Context(), docPath); err != nil {
		if errors.Is(err, indexer.ErrIndexingInProgress) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("removal failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"path": docPath, "status": "removed"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := BuildStatus(r.Context(), s.store, s.indexer, s.meta, s.gate, s.config)
	if err != nil {
		s.logger.Error("status: read index metadata failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
