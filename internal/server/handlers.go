package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ganitha/ganitha/internal/models"
	"github.com/ganitha/ganitha/internal/storage"
)

type answerRequest struct {
	StudentID      string `json:"student_id"`
	ContentID      string `json:"content_id"`
	Correct        bool   `json:"correct"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	HintUsed       bool   `json:"hint_used"`
}

func (s *Server) handleRecordAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentID == "" || req.ContentID == "" {
		s.respondError(w, http.StatusBadRequest, "student_id and content_id are required")
		return
	}
	state, err := s.engine.RecordAnswer(r.Context(), models.InteractionEvent{
		StudentID:      req.StudentID,
		ContentID:      req.ContentID,
		Correct:        req.Correct,
		ResponseTimeMs: req.ResponseTimeMs,
		HintUsed:       req.HintUsed,
	})
	if err != nil {
		s.respondEngineError(w, err, "record answer failed")
		return
	}
	s.respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	topicID := r.URL.Query().Get("topic")
	if topicID == "" {
		s.respondError(w, http.StatusBadRequest, "topic query parameter is required")
		return
	}
	count := 5
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		count = n
	}
	recs, err := s.engine.Recommend(r.Context(), studentID, topicID, count)
	if err != nil {
		s.respondEngineError(w, err, "recommend failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"student_id":      studentID,
		"topic_id":        topicID,
		"recommendations": recs,
	})
}

func (s *Server) handleMastery(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	topicID := chi.URLParam(r, "topicID")
	s.respondJSON(w, http.StatusOK, s.engine.Mastery(studentID, topicID))
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	s.respondJSON(w, http.StatusOK, s.engine.StyleProfile(studentID))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	s.respondJSON(w, http.StatusOK, s.engine.Summary(r.Context(), studentID))
}

func (s *Server) handleIngestContent(w http.ResponseWriter, r *http.Request) {
	var item models.ContentItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ingest content request", zap.String("id", item.ID), zap.String("topic_id", item.TopicID))
	if err := s.engine.IngestContent(r.Context(), &item); err != nil {
		s.respondEngineError(w, err, "ingest failed")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": item.ID, "status": "ingested"})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.engine.Content(id)
	if err != nil {
		s.respondEngineError(w, err, "get content failed")
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete content request", zap.String("id", id))
	if err := s.engine.RemoveContent(r.Context(), id); err != nil {
		s.respondEngineError(w, err, "delete failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleSearchCatalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	results, err := s.engine.SearchCatalog(r.Context(), query, limit)
	if err != nil {
		s.respondEngineError(w, err, "catalog search failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": query, "results": results})
}

func (s *Server) handleRegisterTopic(w http.ResponseWriter, r *http.Request) {
	var topic models.Topic
	if err := json.NewDecoder(r.Body).Decode(&topic); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.RegisterTopic(r.Context(), topic); err != nil {
		s.respondEngineError(w, err, "register topic failed")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": topic.ID, "status": "registered"})
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"topics": s.engine.Topics()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"engine": s.engine.Status(),
	}
	if s.storage != nil {
		ctx := r.Context()
		if n, err := s.storage.CountContents(ctx); err == nil {
			resp["stored_contents"] = n
		}
		if n, err := s.storage.CountEvents(ctx); err == nil {
			resp["stored_events"] = n
		}
		if diskBytes, err := storage.DiskUsageBytes(
			s.config.Storage.DatabasePath,
			s.config.Storage.BleveIndexPath,
			s.config.Storage.VectorIndexPath,
		); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	resp["config"] = map[string]interface{}{
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"database_path":        s.config.Storage.DatabasePath,
		"bleve_index_path":     s.config.Storage.BleveIndexPath,
		"vector_index_path":    s.config.Storage.VectorIndexPath,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondEngineError maps engine errors to HTTP status codes.
func (s *Server) respondEngineError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrNoCandidates):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDimensionMismatch), errors.Is(err, models.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInvariantViolation):
		s.logger.Error(logMsg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error(logMsg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
