package api

import (
	"github.com/gin-gonic/gin"

	"resumate/internal/api/middleware"
)

// Handlers 汇总各业务处理器。
type Handlers struct {
	Auth      *AuthHandler
	Master    *MasterHandler
	Curated   *CuratedHandler
	Documents *DocumentHandler
	Ws        *WsHandler
}

// RegisterRoutes 在 /api/v1 下注册业务路由。
func RegisterRoutes(router *gin.Engine, h Handlers, authMiddleware gin.HandlerFunc) {
	v1 := router.Group("/api/v1")

	if h.Ws != nil {
		v1.GET("/ws", h.Ws.HandleConnection)
	}

	if h.Auth != nil {
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
			authGroup.POST("/refresh", h.Auth.Refresh)
			authGroup.POST("/logout", h.Auth.Logout)
			authGroup.POST("/change-password", authMiddleware, h.Auth.ChangePassword)
		}
	}

	// 改密接口不经过改密闸门，否则临时密码永远无法修改
	protected := v1.Group("")
	protected.Use(authMiddleware, middleware.RequirePasswordChangeCompletedMiddleware())

	if m := h.Master; m != nil {
		protected.GET("/profile", m.GetProfile)
		protected.PUT("/profile", m.UpdateProfile)
		protected.GET("/master-resume", m.GetMasterResume)

		protected.GET("/skills", m.ListSkills)
		protected.POST("/skills", m.CreateSkill)
		protected.GET("/skills/:id", m.GetSkill)
		protected.PUT("/skills/:id", m.UpdateSkill)
		protected.DELETE("/skills/:id", m.DeleteSkill)

		protected.GET("/education", m.ListEducation)
		protected.POST("/education", m.CreateEducation)
		protected.GET("/education/:id", m.GetEducation)
		protected.PUT("/education/:id", m.UpdateEducation)
		protected.DELETE("/education/:id", m.DeleteEducation)

		protected.GET("/resume-items", m.ListItems)
		protected.POST("/resume-items", m.CreateItem)
		protected.GET("/resume-items/:id", m.GetItem)
		protected.PATCH("/resume-items/:id", m.UpdateItem)
		protected.DELETE("/resume-items/:id", m.DeleteItem)
		protected.GET("/resume-items/:id/points", m.ListPoints)
		protected.POST("/resume-items/:id/points", m.CreatePoint)
		protected.PUT("/resume-items/:id/points/order", m.ReorderPoints)

		protected.PUT("/points/:id", m.UpdatePoint)
		protected.DELETE("/points/:id", m.DeletePoint)
	}

	if cr := h.Curated; cr != nil {
		group := protected.Group("/curated-resumes")
		{
			group.POST("/generate", cr.Generate)
			group.POST("/generate-async", cr.GenerateAsync)
			group.GET("", cr.List)
			group.GET("/:id", cr.Get)
			group.DELETE("/:id", cr.Delete)
			group.PATCH("/:id/status", cr.UpdateStatus)
			group.PATCH("/:id/items/:junctionId", cr.UpdateItem)
		}
	}

	if d := h.Documents; d != nil {
		group := protected.Group("/source-documents")
		{
			group.GET("", d.List)
			group.POST("", d.Upload)
			group.GET("/:id/link", d.Link)
			group.DELETE("/:id", d.Delete)
		}
	}
}
