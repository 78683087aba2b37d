package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/feedbacklab/survey-server/internal/model"
	"github.com/feedbacklab/survey-server/internal/service"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	roleSystemAdmin = "system_admin"

	maxPayloadSizeBytes = 100 * 1024

	statListCacheKey = "survey:stat_list"
	statListCacheTTL = 2 * time.Minute
)

// Handlers wires the HTTP surface to the survey and response services. The
// gateway in front of this server authenticates users and forwards identity
// in the X-User-ID and X-User-Role headers.
type Handlers struct {
	surveys   SurveyService
	responses ResponseService
	cache     Cacher
	logger    *zap.Logger
	sf        singleflight.Group
}

func NewHandlers(surveys SurveyService, responses ResponseService, cache Cacher, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		surveys:   surveys,
		responses: responses,
		cache:     cache,
		logger:    logger,
	}
}

// Router builds the API route table.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/surveys/active", h.getActiveSurvey).Methods(http.MethodGet)
	api.HandleFunc("/surveys/{surveyID}/responses", h.submitResponse).Methods(http.MethodPost)
	api.HandleFunc("/surveys/{surveyID}/receipts", h.recordReceipt).Methods(http.MethodPost)
	api.HandleFunc("/surveys/{surveyID}/end", h.endSurvey).Methods(http.MethodPost)
	api.HandleFunc("/surveys/{surveyID}/report", h.downloadReport).Methods(http.MethodGet)
	api.HandleFunc("/survey_stats", h.listSurveyStats).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.getSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.updateSettings).Methods(http.MethodPut)

	return r
}

func (h *Handlers) getActiveSurvey(w http.ResponseWriter, r *http.Request) {
	if h.requireUser(w, r) == "" {
		return
	}

	survey, err := h.surveys.ActiveSurvey(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if survey == nil {
		h.writeError(w, http.StatusNotFound, "no survey is currently in progress")
		return
	}

	h.writeJSON(w, http.StatusOK, survey)
}

type submitResponseRequest struct {
	Answers      map[string]string `json:"answers"`
	ResponseType string            `json:"response_type"`
}

func (h *Handlers) submitResponse(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUser(w, r)
	if userID == "" {
		return
	}

	var body submitResponseRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	response, err := h.responses.Submit(r.Context(), service.SubmitRequest{
		SurveyID:     mux.Vars(r)["surveyID"],
		UserID:       userID,
		Answers:      body.Answers,
		ResponseType: body.ResponseType,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.invalidateStatList(r)
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) recordReceipt(w http.ResponseWriter, r *http.Request) {
	if h.requireUser(w, r) == "" {
		return
	}

	if err := h.surveys.RecordReceipt(r.Context(), mux.Vars(r)["surveyID"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.invalidateStatList(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) endSurvey(w http.ResponseWriter, r *http.Request) {
	if !h.requireSystemAdmin(w, r) {
		return
	}

	status, err := h.surveys.End(r.Context(), mux.Vars(r)["surveyID"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.invalidateStatList(r)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handlers) listSurveyStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireSystemAdmin(w, r) {
		return
	}

	stats, err := FindAndCache(r.Context(), h.cache, &h.sf, statListCacheKey, statListCacheTTL, h.logger,
		func(ctx context.Context) ([]*model.SurveyStat, error) {
			return h.surveys.StatList(ctx)
		})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) downloadReport(w http.ResponseWriter, r *http.Request) {
	if !h.requireSystemAdmin(w, r) {
		return
	}

	surveyID := mux.Vars(r)["surveyID"]
	fileName := service.ReportFileName(surveyID, r.URL.Query().Get("file_name"))

	// stream the CSV page by page; the download headers go out with the
	// first byte, so errors raised before any row is written still map to a
	// clean error status
	rw := &reportWriter{w: w, fileName: fileName}
	if err := h.surveys.WriteReportCSV(r.Context(), surveyID, rw); err != nil {
		if !rw.wroteHeader {
			h.writeServiceError(w, r, err)
			return
		}
		// the client already holds a 200 and part of the file; all that is
		// left is to cut the download short
		h.logger.Error("report stream aborted",
			zap.String("surveyID", surveyID),
			zap.Error(err))
		return
	}

	if !rw.wroteHeader {
		rw.writeHeader()
	}
}

// reportWriter defers the download headers until the first byte of CSV, so a
// failure before then can still become an error response.
type reportWriter struct {
	w           http.ResponseWriter
	fileName    string
	wroteHeader bool
}

func (rw *reportWriter) writeHeader() {
	rw.w.Header().Set("Content-Type", "text/csv")
	rw.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rw.fileName))
	rw.w.Header().Set("X-Content-Type-Options", "nosniff")
	rw.w.WriteHeader(http.StatusOK)
	rw.wroteHeader = true
}

func (rw *reportWriter) Write(p []byte) (int, error) {
	if !rw.wroteHeader {
		rw.writeHeader()
	}
	return rw.w.Write(p)
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireSystemAdmin(w, r) {
		return
	}

	settings, err := h.surveys.Settings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, settings)
}

type updateSettingsRequest struct {
	EnableSurvey    *bool                  `json:"enable_survey,omitempty"`
	SurveyDateTime  *model.SurveyDateTime  `json:"survey_date_time,omitempty"`
	SurveyExpiry    *model.SurveyExpiry    `json:"survey_expiry,omitempty"`
	SurveyQuestions *model.SurveyQuestions `json:"survey_questions,omitempty"`
	TeamFilter      *model.TeamFilter      `json:"team_filter,omitempty"`
}

type updateSettingsResponse struct {
	Settings    *model.Settings   `json:"settings"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

func (h *Handlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireSystemAdmin(w, r) {
		return
	}

	var body updateSettingsRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	settings, fieldErrors, err := h.surveys.UpdateSettings(r.Context(), service.SettingsUpdate{
		EnableSurvey:    body.EnableSurvey,
		SurveyDateTime:  body.SurveyDateTime,
		SurveyExpiry:    body.SurveyExpiry,
		SurveyQuestions: body.SurveyQuestions,
		TeamFilter:      body.TeamFilter,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, updateSettingsResponse{Settings: settings, FieldErrors: fieldErrors})
}

func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "user identity header missing")
		return ""
	}
	return userID
}

func (h *Handlers) requireSystemAdmin(w http.ResponseWriter, r *http.Request) bool {
	if h.requireUser(w, r) == "" {
		return false
	}
	if r.Header.Get(headerUserRole) != roleSystemAdmin {
		h.writeError(w, http.StatusForbidden, "only system admins may access this resource")
		return false
	}
	return true
}

func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadSizeBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return false
	}
	return true
}

// invalidateStatList drops the cached stat view after a counter changed.
// Best effort: a stale read self-heals when the TTL lapses.
func (h *Handlers) invalidateStatList(r *http.Request) {
	if err := h.cache.Del(r.Context(), statListCacheKey); err != nil && !errors.Is(err, redis.Nil) {
		h.logger.Warn("failed to invalidate stat cache", zap.Error(err))
	}
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSurveyNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSurveyNotActive), errors.Is(err, service.ErrResponseFrozen):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "temporary server error, please retry")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
