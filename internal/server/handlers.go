package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/keyword"
	"github.com/hyperjump/otoshimono/internal/mail"
	"github.com/hyperjump/otoshimono/internal/metrics"
	"github.com/hyperjump/otoshimono/internal/models"
	"github.com/hyperjump/otoshimono/internal/storage"
)

const (
	defaultNotificationLimit = 50
	defaultSearchLimit       = 20
	maxListLimit             = 200
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemCount, err := s.storage.CountItems(ctx)
	if err != nil {
		s.logger.Error("status: count items failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	notificationCount, err := s.storage.CountNotifications(ctx)
	if err != nil {
		s.logger.Error("status: count notifications failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"items":         itemCount,
		"notifications": notificationCount,
	}
	if s.index != nil {
		if n, err := s.index.DocCount(); err == nil {
			resp["indexed_items"] = n
		}
	}
	if s.config != nil {
		m := s.config.Matching
		resp["config"] = map[string]interface{}{
			"notify_threshold":   m.NotifyThreshold,
			"email_threshold":    m.EmailThreshold,
			"candidate_limit":    m.CandidateLimit,
			"top_n":              m.TopN,
			"recency_window":     m.RecencyWindow.String(),
			"weights":            m.Weights,
			"intake_directories": s.config.Intake.Directories,
			"database_path":      s.config.Storage.DatabasePath,
			"search_index_path":  s.config.Storage.SearchIndexPath,
		}
		if bytes, err := storage.Footprint(s.config.Storage.DatabasePath, s.config.Storage.SearchIndexPath); err == nil {
			resp["disk_usage_bytes"] = bytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type createUserRequest struct {
	ID       string `json:"id,omitempty"`
	CampusID string `json:"campus_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.CampusID) == "" {
		s.respondError(w, http.StatusBadRequest, "campus_id is required")
		return
	}
	if err := mail.ValidateEmail(req.Email); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user := &models.User{
		ID:       req.ID,
		CampusID: strings.TrimSpace(req.CampusID),
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
	}
	if err := s.storage.CreateUser(r.Context(), user); err != nil {
		s.logger.Error("create user failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, user)
}

// handleCreateItem stores the item and responds before matching finishes.
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var input models.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := input.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item := input.ToItem()
	ctx := r.Context()
	if err := s.storage.CreateItem(ctx, item); err != nil {
		s.logger.Error("create item failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.ItemsCreatedTotal.WithLabelValues(string(item.Type), "api").Inc()
	s.logger.Debug("item created", zap.String("item_id", item.ID), zap.String("type", string(item.Type)))

	if s.index != nil {
		if err := s.index.Index(ctx, item); err != nil {
			s.logger.Warn("failed to index item", zap.String("item_id", item.ID), zap.Error(err))
		}
	}
	if s.matcher != nil {
		s.matcher.Spawn(ctx, item, item.Type)
	}
	s.respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

type updateStatusRequest struct {
	Status models.Status `json:"status"`
}

func (s *Server) handleUpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid status")
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := s.storage.UpdateItemStatus(ctx, id, req.Status); err != nil {
		s.respondStorageError(w, "item", err)
		return
	}
	item, err := s.storage.GetItem(ctx, id)
	if err != nil {
		s.respondStorageError(w, "item", err)
		return
	}
	if s.index != nil {
		var ierr error
		if item.IsActive() {
			ierr = s.index.Index(ctx, item)
		} else {
			ierr = s.index.Delete(ctx, item.ID)
		}
		if ierr != nil {
			s.logger.Warn("failed to update item index", zap.String("item_id", item.ID), zap.Error(ierr))
		}
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handlePreviewMatches(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}
	if s.matcher == nil {
		s.respondError(w, http.StatusNotImplemented, "matching not enabled")
		return
	}
	matches := s.matcher.Preview(r.Context(), item, item.Type)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id": item.ID,
		"matches": matches,
	})
}

func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	opts := &keyword.SearchOptions{
		Limit: queryLimit(r, defaultSearchLimit),
		Fuzzy: r.URL.Query().Get("fuzzy") != "false",
	}
	if t := r.URL.Query().Get("type"); t != "" {
		itemType, err := models.ParseItemType(t)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Type = itemType
	}

	ctx := r.Context()
	campusID := chi.URLParam(r, "campusID")
	hits, err := s.index.Search(ctx, campusID, q, opts)
	if err != nil {
		s.logger.Error("item search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items := make([]*models.Item, 0, len(hits))
	for _, hit := range hits {
		item, err := s.storage.GetItem(ctx, hit.ID)
		if err != nil {
			s.logger.Debug("search hit without stored item", zap.String("item_id", hit.ID), zap.Error(err))
			continue
		}
		if !item.IsActive() {
			continue
		}
		items = append(items, item)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query": q,
		"items": items,
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	list, err := s.storage.ListNotifications(r.Context(), userID, queryLimit(r, defaultNotificationLimit))
	if err != nil {
		s.logger.Error("list notifications failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": list})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.MarkNotificationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStorageError(w, "notification", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) loadItem(w http.ResponseWriter, r *http.Request) (*models.Item, bool) {
	item, err := s.storage.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStorageError(w, "item", err)
		return nil, false
	}
	return item, true
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxListLimit)
}

func (s *Server) respondStorageError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.logger.Error(what+" storage error", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
