// Package handlers exposes the tracker over HTTP with Gin.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/auth"
	"github.com/kartikbazzad/bunbase/tracker/internal/authz"
	"github.com/kartikbazzad/bunbase/tracker/internal/labels"
	"github.com/kartikbazzad/bunbase/tracker/internal/membership"
	"github.com/kartikbazzad/bunbase/tracker/internal/metrics"
	"github.com/kartikbazzad/bunbase/tracker/internal/middleware"
	"github.com/kartikbazzad/bunbase/tracker/internal/tasks"
	"github.com/kartikbazzad/bunbase/tracker/internal/token"
	"github.com/kartikbazzad/bunbase/tracker/internal/users"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
)

// Deps are the services the router dispatches to.
type Deps struct {
	Auth       *auth.Service
	Users      *users.Service
	Projects   *membership.Authority
	Labels     *labels.Synchronizer
	Tasks      *tasks.Service
	Tokens     *token.Service
	Enforcer   *authz.Enforcer
	Logger     *slog.Logger
	CORSOrigin string
	// LoginPerMinute and LoginBurst limit /auth/register and /auth/login per
	// client IP. Zero values use the middleware defaults.
	LoginPerMinute int
	LoginBurst     int
}

// NewRouter builds the Gin engine with every route under /api/v1.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(metrics.Middleware())
	router.Use(middleware.CORSMiddleware(d.CORSOrigin))

	router.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, apperrors.NotFound("route not found"))
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authHandler := NewAuthHandler(d.Auth)
	userHandler := NewUserHandler(d.Users)
	projectHandler := NewProjectHandler(d.Projects, d.Enforcer)
	labelHandler := NewLabelHandler(d.Labels)
	taskHandler := NewTaskHandler(d.Tasks)

	api := router.Group("/api/v1")

	authRoutes := api.Group("/auth")
	limited := middleware.RateLimitMiddleware(d.LoginPerMinute, d.LoginBurst)
	authRoutes.POST("/register", limited, authHandler.Register)
	authRoutes.POST("/login", limited, authHandler.Login)
	authRoutes.POST("/refresh", authHandler.Refresh)
	authRoutes.POST("/logout", authHandler.Logout)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(d.Tokens))

	protected.GET("/user", userHandler.Me)
	protected.PATCH("/user", userHandler.UpdateMe)
	protected.GET("/user/settings", userHandler.Settings)
	protected.PATCH("/user/settings", userHandler.UpdateSettings)

	allow := func(resource, action string) gin.HandlerFunc {
		return middleware.ProjectPermission(d.Enforcer, resource, action)
	}

	protected.GET("/projects", projectHandler.ListProjects)
	protected.POST("/projects", projectHandler.CreateProject)
	protected.DELETE("/projects", projectHandler.BatchDeleteProjects)

	project := protected.Group("/projects/:" + middleware.ProjectParam)
	project.GET("", allow(authz.ResourceProject, authz.ActionRead), projectHandler.GetProject)
	project.PUT("", allow(authz.ResourceProject, authz.ActionUpdate), projectHandler.UpdateProject)
	project.DELETE("", allow(authz.ResourceProject, authz.ActionDelete), projectHandler.DeleteProject)

	project.GET("/members", allow(authz.ResourceMember, authz.ActionRead), projectHandler.ListMembers)
	project.POST("/members", allow(authz.ResourceMember, authz.ActionCreate), projectHandler.AddMember)
	project.PATCH("/members/:"+MemberParam, allow(authz.ResourceMember, authz.ActionUpdate), projectHandler.UpdateMember)
	project.DELETE("/members/:"+MemberParam, projectHandler.RemoveMember)

	project.GET("/labels", allow(authz.ResourceLabel, authz.ActionRead), labelHandler.ListLabels)
	project.POST("/labels", allow(authz.ResourceLabel, authz.ActionCreate), labelHandler.AddLabel)
	project.DELETE("/labels/:"+LabelParam, allow(authz.ResourceLabel, authz.ActionDelete), labelHandler.RemoveLabel)

	taskRoutes := project.Group("/tasks")
	taskRoutes.GET("", allow(authz.ResourceTask, authz.ActionRead), taskHandler.ListTasks)
	taskRoutes.POST("", allow(authz.ResourceTask, authz.ActionCreate), taskHandler.CreateTask)
	taskRoutes.DELETE("", allow(authz.ResourceTask, authz.ActionDelete), taskHandler.BatchDeleteTasks)
	taskRoutes.POST("/batch", allow(authz.ResourceTask, authz.ActionCreate), taskHandler.BatchCreateTasks)

	task := taskRoutes.Group("/:" + TaskParam)
	task.GET("", allow(authz.ResourceTask, authz.ActionRead), taskHandler.GetTask)
	task.PUT("", allow(authz.ResourceTask, authz.ActionUpdate), taskHandler.UpdateTask)
	task.DELETE("", allow(authz.ResourceTask, authz.ActionDelete), taskHandler.DeleteTask)
	task.PATCH("/status", allow(authz.ResourceTask, authz.ActionUpdate), taskHandler.UpdateStatus)
	task.PATCH("/priority", allow(authz.ResourceTask, authz.ActionUpdate), taskHandler.UpdatePriority)
	task.POST("/labels", allow(authz.ResourceTask, authz.ActionUpdate), taskHandler.AddLabel)
	task.DELETE("/labels/:"+LabelParam, allow(authz.ResourceTask, authz.ActionUpdate), taskHandler.RemoveLabel)

	return router
}
