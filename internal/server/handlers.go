package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/nexus/internal/generation"
	"github.com/hyperjump/nexus/internal/indexer"
	"github.com/hyperjump/nexus/internal/models"
	"github.com/hyperjump/nexus/internal/storage"
)

// parseQuery decodes a retrieval request. Validation happens in Dispatch.
func (s *Server) parseQuery(w http.ResponseWriter, r *http.Request) (models.RetrievalQuery, bool) {
	var q models.RetrievalQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return q, false
	}
	return q, true
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}
	s.logger.Debug("retrieve request", zap.String("query", q.Query), zap.String("doc_type", string(q.DocType)), zap.Int("limit", q.Limit))
	ret, err := s.retriever.Dispatch(r.Context(), q)
	if err != nil {
		s.respondDispatchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ret)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.answers == nil || !s.answers.HasGenerator() {
		s.respondError(w, http.StatusNotImplemented, "generation not enabled")
		return
	}
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}
	ans, err := s.answers.Ask(r.Context(), q)
	if err != nil {
		s.respondDispatchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

type complianceRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	if s.answers == nil || !s.answers.HasGenerator() {
		s.respondError(w, http.StatusNotImplemented, "generation not enabled")
		return
	}
	var req complianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.answers.CheckCompliance(r.Context(), req.Question)
	if err != nil {
		s.respondDispatchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// respondDispatchError maps retrieval and generation failures to status codes.
func (s *Server) respondDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyQuery), errors.Is(err, models.ErrUnknownDocType):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, generation.ErrNoGenerator):
		s.respondError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, generation.ErrEmptyResponse):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

type documentRequest struct {
	Path    string         `json:"path"`
	DocType models.DocType `json:"doc_type,omitempty"`
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "indexing not enabled")
		return
	}
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	docType := models.ParseDocType(string(req.DocType))
	if req.DocType != "" && docType == models.DocTypeUnset {
		s.respondError(w, http.StatusBadRequest, "unknown doc_type")
		return
	}
	s.logger.Debug("index document request", zap.String("path", req.Path), zap.String("doc_type", string(docType)))
	n, err := s.indexer.IndexFile(r.Context(), req.Path, docType)
	switch {
	case errors.Is(err, indexer.ErrUnsupportedFile):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, fs.ErrNotExist):
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	case err != nil:
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"path": req.Path, "entries": n, "status": "indexed"})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "indexing not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.logger.Debug("delete document request", zap.String("path", path))
	if err := s.indexer.DeleteFile(r.Context(), path); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handlePutRule(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "rules not enabled")
		return
	}
	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.indexer.PutRule(r.Context(), &rule); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, rule)
}

type importRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleImportRules(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "rules not enabled")
		return
	}
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	n, err := s.indexer.ImportRules(r.Context(), req.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.respondError(w, http.StatusNotFound, "file not found")
			return
		}
		s.logger.Error("rule import failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"path": req.Path, "imported": n})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.respondError(w, http.StatusNotImplemented, "rules not enabled")
		return
	}
	rule, err := s.rules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			s.respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.respondError(w, http.StatusNotImplemented, "rules not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.rules.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			s.respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"backends":   s.retriever.Backends(),
		"generation": s.answers != nil && s.answers.HasGenerator(),
	}
	if s.indexer != nil {
		stats, err := s.indexer.Stats(r.Context())
		if err != nil {
			s.logger.Error("status: stats failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["pages"] = stats.Pages
		resp["rules"] = stats.Rules
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	if len(s.dataPaths) > 0 {
		if usages, total, err := storage.DiskUsage(s.dataPaths...); err == nil {
			resp["disk_usage"] = usages
			resp["disk_usage_bytes"] = total
		} else {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
