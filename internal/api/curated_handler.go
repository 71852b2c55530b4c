package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"resumate/internal/api/middleware"
	"resumate/internal/curated"
	"resumate/internal/database"
	"resumate/internal/tasks"
)

// taskEnqueuer 是 asynq.Client 的最小子集。
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CuratedHandler 处理定制简历的生成、查询与编辑。
type CuratedHandler struct {
	service *curated.Service
	queue   taskEnqueuer
	quota   *hourlyQuota
	logger  *slog.Logger
}

// NewCuratedHandler 构造定制简历处理器。queue 或 redis 为 nil 时分别禁用异步生成与限流。
func NewCuratedHandler(service *curated.Service, queue taskEnqueuer, redisClient redisRateCounter, logger *slog.Logger, generateLimitPerHour int) *CuratedHandler {
	h := &CuratedHandler{service: service, queue: queue, logger: logger}
	if redisClient != nil {
		h.quota = newHourlyQuota(redisClient, "rate:generate", generateLimitPerHour)
	}
	return h
}

type generateRequest struct {
	JobDescription string  `json:"job_description"`
	Title          string  `json:"title"`
	JobTitle       *string `json:"job_title"`
	Company        *string `json:"company"`
	JobURL         *string `json:"job_url"`
}

func (r generateRequest) input() curated.GenerateInput {
	return curated.GenerateInput{
		JobDescription: r.JobDescription,
		Title:          r.Title,
		JobTitle:       r.JobTitle,
		Company:        r.Company,
		JobURL:         r.JobURL,
	}
}

// allowGenerate 按用户每小时计数；redis 不可用时放行。
func (h *CuratedHandler) allowGenerate(c *gin.Context, userID uint) bool {
	allowed, err := h.quota.take(c.Request.Context(), userID)
	if err != nil {
		middleware.LoggerFromContext(c).Warn("generate rate counter unavailable", slog.Any("error", err))
	}
	if !allowed {
		Error(c, http.StatusTooManyRequests, "generation rate limit exceeded")
		return false
	}
	return true
}

// Generate 同步生成并保存一份定制简历。
func (h *CuratedHandler) Generate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req generateRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		BadRequest(c, "job_description is required")
		return
	}
	if !h.allowGenerate(c, userID) {
		return
	}

	result, err := h.service.Generate(c.Request.Context(), userID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusCreated, result)
}

// GenerateAsync 将生成任务放入队列，结果通过 WebSocket 通知。
func (h *CuratedHandler) GenerateAsync(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.queue == nil {
		Error(c, http.StatusServiceUnavailable, "async generation unavailable")
		return
	}
	var req generateRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		BadRequest(c, "job_description is required")
		return
	}
	if !h.allowGenerate(c, userID) {
		return
	}

	logger := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))
	task, err := tasks.NewCuratedGenerateTask(tasks.CuratedGeneratePayload{
		UserID:         userID,
		JobDescription: req.JobDescription,
		Title:          req.Title,
		JobTitle:       req.JobTitle,
		Company:        req.Company,
		JobURL:         req.JobURL,
		CorrelationID:  middleware.GetCorrelationID(c),
	})
	if err != nil {
		logger.Error("build generate task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	info, err := h.queue.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		logger.Error("enqueue generate task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("generate task enqueued", slog.String("task_id", info.ID))
	OK(c, http.StatusAccepted, gin.H{"task_id": info.ID})
}

func (h *CuratedHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	list, err := h.service.Store().List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, list)
}

func (h *CuratedHandler) Get(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.Store().Get(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if doc == nil {
		NotFound(c, "resource not found")
		return
	}
	OK(c, http.StatusOK, doc)
}

func (h *CuratedHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Store().Delete(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, gin.H{"id": id})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 切换 draft/finalized/archived。
func (h *CuratedHandler) UpdateStatus(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	if !curated.ValidStatus(req.Status) {
		BadRequest(c, fmt.Sprintf("status must be one of %s, %s, %s", database.StatusDraft, database.StatusFinalized, database.StatusArchived))
		return
	}
	summary, err := h.service.Store().UpdateStatus(c.Request.Context(), id, userID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, summary)
}

// UpdateItem 编辑定制简历中某条目的标题/机构覆盖值。
func (h *CuratedHandler) UpdateItem(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	junctionID, ok := pathID(c, "junctionId")
	if !ok {
		return
	}
	var in curated.OverrideInput
	if !bindJSON(c, &in) {
		return
	}
	item, err := h.service.Store().UpdateItemOverrides(c.Request.Context(), id, junctionID, userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, item)
}
