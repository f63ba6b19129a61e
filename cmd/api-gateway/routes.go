package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/therapy-match-api/internal/handler"
	"github.com/noah-isme/therapy-match-api/internal/middleware"
	"github.com/noah-isme/therapy-match-api/internal/models"
)

type handlers struct {
	auth      *handler.AuthHandler
	triage    *handler.TriageHandler
	directory *handler.DirectoryHandler
	therapist *handler.TherapistHandler
	dossier   *handler.DossierHandler
	metrics   *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, prefix string, docs bool, tokens middleware.TokenValidator, h handlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authRequired := middleware.JWT(tokens)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)
	auth.POST("/logout", authRequired, h.auth.Logout)
	auth.GET("/me", authRequired, h.auth.Me)

	triage := api.Group("/triage")
	triage.POST("", middleware.OptionalJWT(tokens), h.triage.Submit)
	triage.GET("/sessions", authRequired, middleware.RequireRoles(models.RoleClient), h.triage.ListMine)
	triage.GET("/sessions/:id", authRequired, h.triage.Get)

	therapists := api.Group("/therapists")
	therapists.GET("", h.directory.Search)
	therapists.GET("/:id", h.directory.Get)
	therapists.PUT("/:id", authRequired, middleware.RequireRoles(models.RoleTherapist), h.therapist.Update)

	admin := api.Group("/admin", authRequired, adminOnly)
	admin.GET("/therapists/export", h.therapist.Export)
	admin.PATCH("/therapists/:id/status", h.therapist.UpdateStatus)
	admin.DELETE("/therapists/:id", h.therapist.Delete)

	dossiers := api.Group("/dossiers")
	dossiers.GET("/download/:token", h.dossier.Download)
	dossiers.POST("", authRequired, h.dossier.Create)
	dossiers.GET("/:id", authRequired, h.dossier.Get)
	dossiers.POST("/:id/download-link", authRequired, h.dossier.IssueDownloadLink)
}
