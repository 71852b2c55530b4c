package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumate/internal/master"
)

// MasterHandler 提供主简历（技能、教育、经历/项目条目与要点、个人资料）的 CRUD 接口。
type MasterHandler struct {
	store  *master.Store
	logger *slog.Logger
}

// NewMasterHandler 构造主简历处理器。
func NewMasterHandler(store *master.Store, logger *slog.Logger) *MasterHandler {
	return &MasterHandler{store: store, logger: logger}
}

// GetProfile 返回当前用户的个人资料。
func (h *MasterHandler) GetProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	profile, err := h.store.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, profile)
}

// UpdateProfile 覆盖个人资料。
func (h *MasterHandler) UpdateProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var in master.ProfileInput
	if !bindJSON(c, &in) {
		return
	}
	profile, err := h.store.UpdateProfile(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, profile)
}

// GetMasterResume 返回完整主简历。
func (h *MasterHandler) GetMasterResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	resume, err := h.store.LoadResume(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, resume)
}

func (h *MasterHandler) ListSkills(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	skills, err := h.store.ListSkills(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, skills)
}

func (h *MasterHandler) GetSkill(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	skill, err := h.store.GetSkill(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, skill)
}

func (h *MasterHandler) CreateSkill(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var in master.SkillInput
	if !bindJSON(c, &in) {
		return
	}
	skill, err := h.store.CreateSkill(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusCreated, skill)
}

func (h *MasterHandler) UpdateSkill(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in master.SkillInput
	if !bindJSON(c, &in) {
		return
	}
	skill, err := h.store.UpdateSkill(c.Request.Context(), id, userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, skill)
}

func (h *MasterHandler) DeleteSkill(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteSkill(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, gin.H{"id": id})
}

func (h *MasterHandler) ListEducation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	entries, err := h.store.ListEducation(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, entries)
}

func (h *MasterHandler) GetEducation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.store.GetEducation(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, entry)
}

func (h *MasterHandler) CreateEducation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var in master.EducationInput
	if !bindJSON(c, &in) {
		return
	}
	entry, err := h.store.CreateEducation(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusCreated, entry)
}

func (h *MasterHandler) UpdateEducation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in master.EducationInput
	if !bindJSON(c, &in) {
		return
	}
	entry, err := h.store.UpdateEducation(c.Request.Context(), id, userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, entry)
}

func (h *MasterHandler) DeleteEducation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteEducation(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, gin.H{"id": id})
}

// ListItems 列出条目，可通过 ?type= 过滤。
func (h *MasterHandler) ListItems(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	items, err := h.store.ListItems(c.Request.Context(), userID, c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, items)
}

func (h *MasterHandler) GetItem(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.store.GetItem(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, item)
}

func (h *MasterHandler) CreateItem(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var in master.ResumeItemInput
	if !bindJSON(c, &in) {
		return
	}
	item, err := h.store.CreateItem(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusCreated, item)
}

// UpdateItem 仅更新请求体中出现的字段；显式 null 清空可选字段。
func (h *MasterHandler) UpdateItem(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch master.ResumeItemPatch
	if !bindJSON(c, &patch) {
		return
	}
	item, err := h.store.UpdateItem(c.Request.Context(), id, userID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, item)
}

func (h *MasterHandler) DeleteItem(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteItem(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, gin.H{"id": id})
}

func (h *MasterHandler) ListPoints(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}
	points, err := h.store.ListPoints(c.Request.Context(), itemID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, points)
}

func (h *MasterHandler) CreatePoint(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in master.PointInput
	if !bindJSON(c, &in) {
		return
	}
	point, err := h.store.CreatePoint(c.Request.Context(), itemID, userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusCreated, point)
}

type reorderPointsRequest struct {
	PointIDs []uint `json:"point_ids" binding:"required"`
}

// ReorderPoints 按给定顺序重排条目下的全部要点。
func (h *MasterHandler) ReorderPoints(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reorderPointsRequest
	if !bindJSON(c, &req) {
		return
	}
	points, err := h.store.ReorderPoints(c.Request.Context(), itemID, userID, req.PointIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, points)
}

func (h *MasterHandler) UpdatePoint(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in master.PointInput
	if !bindJSON(c, &in) {
		return
	}
	point, err := h.store.UpdatePoint(c.Request.Context(), id, userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, point)
}

func (h *MasterHandler) DeletePoint(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeletePoint(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, gin.H{"id": id})
}
