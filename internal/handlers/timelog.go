package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tempora-hq/timetrack-api/internal/middleware"
	"github.com/tempora-hq/timetrack-api/internal/models"
	"github.com/tempora-hq/timetrack-api/internal/rbac"
	"github.com/tempora-hq/timetrack-api/internal/repository"
	"github.com/tempora-hq/timetrack-api/internal/service"
)

// summaryCacheTTL bounds how stale a cached time summary can get.
const summaryCacheTTL = time.Hour

// maxPageSize caps the limit query parameter.
const maxPageSize = 100

// TimeLogHandler handles time tracking HTTP requests.
type TimeLogHandler struct {
	timeLogRepo repository.TimeLogRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditLogRepository
	cache       *redis.Client
	log         zerolog.Logger
}

// NewTimeLogHandler creates a new TimeLogHandler instance.
func NewTimeLogHandler(
	timeLogRepo repository.TimeLogRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	cache *redis.Client,
	log zerolog.Logger,
) *TimeLogHandler {
	return &TimeLogHandler{
		timeLogRepo: timeLogRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		cache:       cache,
		log:         log,
	}
}

// CreateTimeLogRequest represents the time log creation payload.
type CreateTimeLogRequest struct {
	ProjectID   string     `json:"project_id" binding:"required"`
	TaskID      string     `json:"task_id"`
	Description string     `json:"description" binding:"required"`
	StartTime   time.Time  `json:"start_time" binding:"required"`
	EndTime     *time.Time `json:"end_time"`
	Duration    int        `json:"duration" binding:"required,min=1"`
	Type        string     `json:"type" binding:"required,oneof=work travel holiday sick"`
	Billable    bool       `json:"billable"`
	Tags        []string   `json:"tags"`
}

// UpdateTimeLogRequest represents the partial time log update payload.
type UpdateTimeLogRequest struct {
	Description *string    `json:"description"`
	EndTime     *time.Time `json:"end_time"`
	Duration    *int       `json:"duration"`
	Billable    *bool      `json:"billable"`
	Tags        []string   `json:"tags"`
}

// List godoc
// @Summary List time logs
// @Description List time logs visible at the caller's resolved scope
// @Tags time
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/time/logs [get]
func (h *TimeLogHandler) List(c *gin.Context) {
	entry, ok := middleware.AuthFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "token expired or invalid")
		return
	}

	requested := c.DefaultQuery("scope", "department_reports")
	scope := rbac.ResolveScope(entry.Permissions, requested)

	pageSize := intQuery(c, "limit", 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := repository.TimeLogFilter{
		ProjectID: c.Query("projectId"),
		Page:      intQuery(c, "page", 1),
		PageSize:  pageSize,
	}
	if start, ok := timeQuery(c, "startDate"); ok {
		filter.StartDate = &start
	}
	if end, ok := timeQuery(c, "endDate"); ok {
		filter.EndDate = &end
	}

	logs, total, err := h.timeLogRepo.List(c.Request.Context(), scope, entry.UserID, entry.Department, filter)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
		"scope":   scope,
		"pagination": gin.H{
			"page":     filter.Page,
			"pageSize": filter.PageSize,
			"total":    total,
			"hasMore":  int64(filter.Page*filter.PageSize) < total,
		},
	})
}

// Create godoc
// @Summary Create time log
// @Description Record a block of tracked time; requires granted time_tracking consent
// @Tags time
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateTimeLogRequest true "Time log"
// @Success 201 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /api/time/logs [post]
func (h *TimeLogHandler) Create(c *gin.Context) {
	entry, ok := middleware.AuthFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "token expired or invalid")
		return
	}

	var req CreateTimeLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid time log payload")
		return
	}

	// Consent gate: checked before any write happens.
	granted, err := h.userRepo.HasConsent(c.Request.Context(), entry.UserID, models.ConsentTimeTracking)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if !granted {
		respondError(c, http.StatusForbidden, service.ErrConsentRequired.Error())
		return
	}

	timeLog := &models.TimeLog{
		ID:          uuid.NewString(),
		UserID:      entry.UserID,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Duration:    req.Duration,
		Type:        req.Type,
		Billable:    req.Billable,
		Tags:        req.Tags,
	}
	if timeLog.Tags == nil {
		timeLog.Tags = []string{}
	}

	if err := h.timeLogRepo.Create(c.Request.Context(), timeLog); err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.bumpSummaryVersion(c, entry.UserID)
	h.audit(c, models.AuditLog{
		UserID:     entry.UserID,
		Action:     models.AuditCreateTimeLog,
		ResourceID: timeLog.ID,
		Success:    true,
	})

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": timeLog})
}

// Update godoc
// @Summary Update time log
// @Description Partially update a time log; owners only unless admin or write:other_time
// @Tags time
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Time log ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/time/logs/{id} [patch]
func (h *TimeLogHandler) Update(c *gin.Context) {
	entry, ok := middleware.AuthFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "token expired or invalid")
		return
	}

	var req UpdateTimeLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid time log payload")
		return
	}

	timeLog, err := h.timeLogRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondRepoError(c, h.log, err)
		return
	}

	if timeLog.UserID != entry.UserID &&
		!rbac.Has(entry.Permissions, rbac.PermAdminAll) &&
		!rbac.Has(entry.Permissions, rbac.PermWriteOtherTime) {
		respondError(c, http.StatusForbidden, "forbidden")
		return
	}

	if req.Description != nil {
		timeLog.Description = *req.Description
	}
	if req.EndTime != nil {
		timeLog.EndTime = req.EndTime
	}
	if req.Duration != nil {
		timeLog.Duration = *req.Duration
	}
	if req.Billable != nil {
		timeLog.Billable = *req.Billable
	}
	if req.Tags != nil {
		timeLog.Tags = req.Tags
	}

	if err := h.timeLogRepo.Update(c.Request.Context(), timeLog); err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.bumpSummaryVersion(c, timeLog.UserID)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": timeLog})
}

// Delete godoc
// @Summary Delete time log
// @Description Delete a time log; owners only unless admin
// @Tags time
// @Security BearerAuth
// @Param id path string true "Time log ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/time/logs/{id} [delete]
func (h *TimeLogHandler) Delete(c *gin.Context) {
	entry, ok := middleware.AuthFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "token expired or invalid")
		return
	}

	timeLog, err := h.timeLogRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondRepoError(c, h.log, err)
		return
	}

	if timeLog.UserID != entry.UserID && !rbac.Has(entry.Permissions, rbac.PermAdminAll) {
		respondError(c, http.StatusForbidden, "forbidden")
		return
	}

	if err := h.timeLogRepo.Delete(c.Request.Context(), timeLog.ID); err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.bumpSummaryVersion(c, timeLog.UserID)
	h.audit(c, models.AuditLog{
		UserID:     entry.UserID,
		Action:     models.AuditDeleteTimeLog,
		ResourceID: timeLog.ID,
		Success:    true,
	})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Summary godoc
// @Summary Time summary
// @Description Per-type aggregate over the caller's own time logs, cached for an hour
// @Tags time
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/time/summary [get]
func (h *TimeLogHandler) Summary(c *gin.Context) {
	entry, ok := middleware.AuthFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "token expired or invalid")
		return
	}

	start, _ := timeQuery(c, "startDate")
	end, hasEnd := timeQuery(c, "endDate")
	if !hasEnd {
		end = time.Now()
	}

	ctx := c.Request.Context()
	cacheKey := h.summaryCacheKey(c, entry.UserID, start, end)
	if cached, err := h.cache.Get(ctx, cacheKey).Result(); err == nil {
		var summary []models.TimeSummary
		if json.Unmarshal([]byte(cached), &summary) == nil {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": summary, "fromCache": true})
			return
		}
	}

	summary, err := h.timeLogRepo.Summary(ctx, entry.UserID, start, end)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	if payload, err := json.Marshal(summary); err == nil {
		if err := h.cache.Set(ctx, cacheKey, payload, summaryCacheTTL).Err(); err != nil {
			h.log.Warn().Err(err).Msg("summary cache write failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// summaryCacheKey includes a per-user version counter so mutations can
// invalidate every cached range with one INCR instead of a key scan.
func (h *TimeLogHandler) summaryCacheKey(c *gin.Context, userID string, start, end time.Time) string {
	version, err := h.cache.Get(c.Request.Context(), summaryVersionKey(userID)).Result()
	if err != nil {
		version = "0"
	}
	return fmt.Sprintf("user:%s:time_summary:v%s:%d:%d", userID, version, start.Unix(), end.Unix())
}

func (h *TimeLogHandler) bumpSummaryVersion(c *gin.Context, userID string) {
	if err := h.cache.Incr(c.Request.Context(), summaryVersionKey(userID)).Err(); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("summary invalidation failed")
	}
}

func summaryVersionKey(userID string) string {
	return "user:" + userID + ":summary_ver"
}

func (h *TimeLogHandler) audit(c *gin.Context, entry models.AuditLog) {
	entry.IPAddress = c.ClientIP()
	if err := h.auditRepo.Record(c.Request.Context(), entry); err != nil {
		h.log.Error().Err(err).Str("action", entry.Action).Msg("audit write failed")
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func timeQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
