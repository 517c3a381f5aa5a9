package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	StudentExam *handler.StudentExamHandler
	Proctor     *handler.ProctorHandler
	Monitor     *handler.MonitorHandler
	WS          *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// limiter may be nil to disable rate limiting.
func SetupRouter(
	auth middleware.TokenValidator,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(response.RequestLogger(log))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	authenticated := []gin.HandlerFunc{middleware.RequireJWT(auth)}
	if limiter != nil {
		authenticated = append(authenticated, limiter.Middleware())
	}

	// ─── 1. Student Group (JWT + student role) ─────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(authenticated...)
	studentAPI.Use(middleware.RequireStudent())
	{
		studentAPI.POST("/exams/:exam_id/start", handlers.StudentExam.StartExam)
		studentAPI.PUT("/exams/:exam_id/progress", handlers.StudentExam.UpdateProgress)
		studentAPI.POST("/exams/:exam_id/submit", handlers.StudentExam.SubmitExam)
		studentAPI.POST("/exams/:exam_id/violations", handlers.StudentExam.RecordViolation)
		studentAPI.GET("/exams/:exam_id/state", handlers.StudentExam.GetExamState)
		studentAPI.GET("/exams/:exam_id/result", handlers.StudentExam.GetResult)
	}

	// ─── 2. WebSocket Group (token may come from ?token=) ──────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireJWT(auth), middleware.RequireStudent())
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.ExamWebSocketStream)
	}

	// ─── 3. Proctor Group (JWT + staff role) ───────────────────────────
	proctorAPI := router.Group("/api/v1/proctor")
	proctorAPI.Use(authenticated...)
	proctorAPI.Use(middleware.RequireStaff())
	{
		proctorAPI.POST("/exams/:id/students/:student_id/resume", handlers.Proctor.ResumeStudent)
		proctorAPI.POST("/exams/:id/end", handlers.Proctor.EndExam)
		proctorAPI.GET("/exams/:id/sessions", handlers.Proctor.ListSessions)
		proctorAPI.GET("/exams/:id/violations", handlers.Proctor.ListViolations)
		proctorAPI.GET("/exams/:id/analytics", handlers.Proctor.GetAnalytics)
		proctorAPI.GET("/integrity", handlers.Proctor.GetIntegrityReport)
	}

	// SSE streams are long-lived and skip the rate limiter.
	monitor := router.Group("/api/v1/proctor")
	monitor.Use(middleware.RequireJWT(auth), middleware.RequireStaff())
	{
		monitor.GET("/exams/:id/monitor", handlers.Monitor.MonitorExamSSE)
		monitor.GET("/monitor", handlers.Monitor.MonitorGlobalSSE)
	}

	return router
}
