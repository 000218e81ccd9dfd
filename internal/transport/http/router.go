package http

import (
	"context"
	"net/http"
	"time"

	"quizit-service/internal/app"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the application services the router exposes.
type Services struct {
	Sessions    *app.SessionService
	Submissions *app.SubmissionCoordinator
	Proctor     *app.Proctor
	Results     *app.ResultsService
	Admin       *app.QuizAdmin
	Events      *app.EventHub
}

// Metrics instruments the router. *metrics.Collector implements it.
type Metrics interface {
	ConnectionObserver
	Middleware() gin.HandlerFunc
	Handler() gin.HandlerFunc
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries the transport settings.
type RouterConfig struct {
	Mode              string
	CORSOrigins       []string
	AdminToken        string
	ViolationDebounce time.Duration
	Metrics           Metrics
	HealthChecks      map[string]HealthCheck
	Logger            *zap.Logger
}

// NewRouter wires every endpoint onto a gin engine.
func NewRouter(svc Services, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log.Named("http")), corsMiddleware(cfg.CORSOrigins))

	var observer ConnectionObserver
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
		router.GET("/metrics", cfg.Metrics.Handler())
		observer = cfg.Metrics
	}
	router.GET("/healthz", healthHandler(cfg.HealthChecks))

	sessions := NewSessionHandler(svc.Sessions, svc.Submissions, svc.Proctor, log)
	quizzes := NewQuizHandler(svc.Admin, svc.Results, log)
	ws := NewWSHandler(svc.Sessions, svc.Submissions, svc.Proctor, svc.Events, WSConfig{
		ViolationDebounce: cfg.ViolationDebounce,
		Observer:          observer,
	}, log)

	api := router.Group("/api")
	{
		api.POST("/sessions", sessions.CreateOrResume)
		api.GET("/sessions", sessions.GetSession)
		api.POST("/sessions/heartbeat", sessions.Heartbeat)
		api.GET("/sessions/remaining", sessions.GetRemaining)
		api.POST("/sessions/progress", sessions.SaveProgress)
		api.POST("/sessions/tab-switch", sessions.TabSwitch)
		api.POST("/sessions/check", sessions.CheckCompleted)
		api.POST("/submissions", sessions.Submit)
		api.GET("/quizzes", quizzes.ListQuizzes)
	}

	admin := api.Group("/admin", adminAuth(cfg.AdminToken))
	{
		admin.POST("/quizzes", quizzes.CreateQuiz)
		admin.DELETE("/quizzes/:id", quizzes.DeleteQuiz)
		admin.GET("/quizzes/:id/results", quizzes.GetResults)
	}

	router.GET("/ws", gin.WrapF(ws.ServeWS))
	return router
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": report})
	}
}
