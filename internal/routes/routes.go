package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectboard/internal/auth"
	"projectboard/internal/handlers"
	"projectboard/internal/middleware"
	"projectboard/internal/web"
)

// Options wires the router. Shell may be nil to serve the API only.
type Options struct {
	Handler     *handlers.Handler
	Tokens      *auth.Manager
	Logger      *zap.Logger
	CORSOrigins []string
	Shell       *web.Shell
	// AuthLimiter throttles the public auth endpoints when set.
	AuthLimiter *middleware.RateLimiter
}

func SetupRoutes(o Options) *gin.Engine {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := o.Handler
	m := h.Metrics()

	ginRouter := gin.New()
	ginRouter.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		m.Middleware(),
		middleware.CORS(o.CORSOrigins),
	)

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"message":     "Project board API is running",
			"connections": h.Hub().Connections(),
		})
	})
	ginRouter.GET("/metrics", gin.WrapH(m.Handler()))

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	public := api.Group("")
	if o.AuthLimiter != nil {
		public.Use(o.AuthLimiter.Middleware())
	}
	{
		public.POST("/login", h.Login)
		public.POST("/auth/login", h.Login)
		public.POST("/auth/register", h.Register)
		public.POST("/auth/logout", h.Logout)
		public.POST("/auth/password/forgot", h.ForgotPassword)
		public.POST("/auth/password/verify", h.VerifyResetCode)
		public.POST("/auth/password/reset", h.ResetPassword)
		public.GET("/auth/oauth/:provider", h.OAuthStart)
		public.GET("/auth/oauth/:provider/callback", h.OAuthCallback)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware(o.Tokens))
	{
		protectedRoutes.GET("/auth/session", h.Session)

		// Task endpoints
		protectedRoutes.GET("/tasks", h.GetTasks)
		protectedRoutes.GET("/tasks/:id", h.GetTaskByID)
		protectedRoutes.POST("/tasks", h.CreateTask)
		protectedRoutes.PUT("/tasks/:id", h.UpdateTask)
		protectedRoutes.PATCH("/tasks/:id/status", h.UpdateTaskStatus)
		protectedRoutes.DELETE("/tasks/:id", h.DeleteTask)
		protectedRoutes.GET("/tasks/:id/subtasks", h.ListSubtasks)
		protectedRoutes.POST("/tasks/:id/subtasks", h.CreateSubtask)
		protectedRoutes.PUT("/tasks/:id/subtasks/:subtaskId", h.UpdateSubtask)
		protectedRoutes.DELETE("/tasks/:id/subtasks/:subtaskId", h.DeleteSubtask)

		protectedRoutes.GET("/projects", h.GetProjects)
		protectedRoutes.GET("/projects/:id", h.GetProjectByID)
		protectedRoutes.GET("/projects/:id/tasks", h.GetProjectTasks)
		protectedRoutes.POST("/projects", h.CreateProject)
		protectedRoutes.PUT("/projects/:id", h.UpdateProject)
		protectedRoutes.DELETE("/projects/:id", h.DeleteProject)

		protectedRoutes.GET("/teams", h.GetTeams)
		protectedRoutes.GET("/teams/:id", h.GetTeamByID)
		protectedRoutes.POST("/teams", h.CreateTeam)
		protectedRoutes.PUT("/teams/:id", h.UpdateTeam)
		protectedRoutes.DELETE("/teams/:id", h.DeleteTeam)

		protectedRoutes.GET("/comments", h.ListComments)
		protectedRoutes.POST("/comments", h.CreateComment)
		protectedRoutes.PUT("/comments/:id", h.UpdateComment)
		protectedRoutes.DELETE("/comments/:id", h.DeleteComment)

		protectedRoutes.GET("/attachments", h.ListAttachments)
		protectedRoutes.POST("/attachments", h.UploadAttachment)
		protectedRoutes.GET("/attachments/:id", h.GetAttachment)
		protectedRoutes.GET("/attachments/:id/download", h.DownloadAttachment)
		protectedRoutes.DELETE("/attachments/:id", h.DeleteAttachment)

		// Users endpoint
		protectedRoutes.GET("/users", h.GetAllUsers)
		protectedRoutes.PUT("/users/me", h.UpdateMe)
		protectedRoutes.POST("/users/me/avatar", h.UploadAvatar)
		protectedRoutes.GET("/users/:id", h.GetUser)
		protectedRoutes.GET("/users/:id/avatar", h.GetAvatar)

		protectedRoutes.GET("/search", h.Search)

		// Stats endpoints
		protectedRoutes.GET("/stats", h.GetDashboardStats)
		protectedRoutes.GET("/stats/:userid", h.GetStatsByUser)
	}

	// Browsers cannot set headers on the upgrade request, so the token may
	// also come from the session cookie or the token query parameter.
	ginRouter.GET("/ws", middleware.JWTAuthMiddleware(o.Tokens), h.WebSocket)

	if o.Shell != nil {
		o.Shell.Register(ginRouter)
	} else {
		ginRouter.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		})
	}

	return ginRouter
}
