package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nelssec/appguard/internal/auth"
	"github.com/nelssec/appguard/internal/engine"
	"github.com/nelssec/appguard/internal/models"
	"github.com/nelssec/appguard/internal/reports"
	"github.com/nelssec/appguard/internal/store"
)

func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var payload models.EventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	payload.Normalize()

	result, err := s.engine.Analyze(payload.Data)
	if err != nil {
		if errors.Is(err, engine.ErrModelUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "model_unavailable", "Anomaly model not loaded")
			return
		}
		respondError(w, http.StatusInternalServerError, "analysis_error", err.Error())
		return
	}

	event := &models.SecurityEvent{
		DeviceID:             payload.DeviceID,
		AppID:                payload.AppID,
		EventType:            payload.EventType,
		Data:                 payload.Data,
		RiskScore:            result.RiskScore,
		AnomalyScore:         result.AnomalyScore,
		AnomalyDetected:      result.AnomalyDetected,
		ComplianceViolations: result.ComplianceViolations,
		Recommendations:      result.Recommendations,
	}

	if err := s.events.CreateEvent(r.Context(), event); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	if s.cache != nil {
		if err := s.cache.InvalidateStats(r.Context()); err != nil {
			s.logger.Warn("failed to invalidate stats cache", "error", err)
		}
	}

	respondJSON(w, http.StatusCreated, event)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	filters := store.ListEventFilters{
		Limit:  100,
		Offset: 0,
	}

	q := r.URL.Query()
	if v := q.Get("device_id"); v != "" {
		filters.DeviceID = &v
	}
	if v := q.Get("app_id"); v != "" {
		filters.AppID = &v
	}
	if v := q.Get("event_type"); v != "" {
		filters.EventType = &v
	}
	if v := q.Get("min_risk"); v != "" {
		minRisk, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_filter", "min_risk must be a number")
			return
		}
		filters.MinRisk = &minRisk
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	events, total, err := s.events.ListEvents(r.Context(), filters)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if events == nil {
		events = []models.SecurityEvent{}
	}

	respondJSONWithMeta(w, http.StatusOK, events, &apiMeta{
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid event ID")
		return
	}

	event, err := s.events.GetEvent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "not_found", "Event not found")
		return
	}

	respondJSON(w, http.StatusOK, event)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		cached, err := s.cache.GetStats(r.Context())
		if err != nil {
			s.logger.Warn("stats cache read failed", "error", err)
		}
		if cached != nil {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	stats, err := s.events.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	if s.cache != nil {
		if err := s.cache.SetStats(r.Context(), stats); err != nil {
			s.logger.Warn("stats cache write failed", "error", err)
		}
	}

	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) summaryReport(w http.ResponseWriter, r *http.Request) {
	stats, err := s.events.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	topEvents, err := s.events.ListTopRiskEvents(r.Context(), 10)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	pdf, err := reports.SummaryPDF(stats, topEvents)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "report_error", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="security-summary.pdf"`)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}

	tokens, err := s.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "auth_error", "Invalid credentials")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	tokens, err := s.authService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "auth_error", "Invalid refresh token")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

func (s *Server) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "auth_error", "Not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": claims.UserID,
		"email":   claims.Email,
		"role":    claims.Role,
	})
}

type createUserRequest struct {
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleViewer
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "server_error", "Failed to process password")
		return
	}

	user := &auth.User{
		Email:    req.Email,
		Name:     req.Name,
		Password: hashedPassword,
		Role:     req.Role,
	}

	if err := s.userStore.CreateUser(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusCreated, user)
}
