package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/groupward/contrib-engine/internal/cases"
	"github.com/groupward/contrib-engine/internal/config"
	"github.com/groupward/contrib-engine/internal/database"
	"github.com/groupward/contrib-engine/internal/engine"
	"github.com/groupward/contrib-engine/internal/errors"
	"github.com/groupward/contrib-engine/internal/middleware"
	"github.com/groupward/contrib-engine/internal/monitoring"
	"github.com/groupward/contrib-engine/internal/peerreview"
	"github.com/groupward/contrib-engine/internal/ratelimit"
	"github.com/groupward/contrib-engine/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.NewDB(cfg.Storage.DataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	gate := peerreview.NewGate(repo, logger)
	caseSvc := cases.NewService(repo, logger)
	appMetrics := monitoring.NewMetrics()

	eng := engine.New(repo, caseSvc, gate, appMetrics, cfg.Detection.RiskCacheTTL.Std(), logger)
	defer eng.Close()

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})
	defer limiter.Close()

	r := setupRouter(eng, appMetrics, limiter, cfg.Server.AllowedOrigins)

	var sched *scheduler.Scheduler
	if cfg.Detection.Schedule != "" {
		sched = scheduler.New(eng, repo, logger)
		if err := sched.Start(cfg.Detection.Schedule); err != nil {
			slog.Error("Failed to start detection scheduler", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// setupRouter wires every endpoint. Split out so tests can drive the full
// stack through httptest.
func setupRouter(eng *engine.Engine, appMetrics *monitoring.Metrics, limiter *ratelimit.RateLimiter, allowedOrigins []string) *gin.Engine {
	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(appMetrics))
	r.Use(errors.RecoveryHandler())
	r.Use(middleware.NewCompression().Handler())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	if limiter != nil {
		r.Use(limiter.Middleware())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"metrics":   appMetrics.GetStats(),
		})
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"metrics": appMetrics.GetStats(),
			"cache":   eng.CacheStats(),
		})
	})

	projects := r.Group("/projects/:projectID")
	{
		projects.GET("/settings", func(c *gin.Context) {
			ps, err := eng.Settings(c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, ps)
		})

		projects.PUT("/settings", func(c *gin.Context) {
			var req struct {
				TaskWeight         float64 `json:"task_weight"`
				PeerReviewWeight   float64 `json:"peer_review_weight"`
				CommitWeight       float64 `json:"commit_weight"`
				LatePenaltyWeight  float64 `json:"late_penalty_weight"`
				DetectionThreshold float64 `json:"detection_threshold"`
				ExcludeLeads       bool    `json:"exclude_leads"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, errors.NewValidationError("invalid request body"))
				return
			}
			ps := &database.ProjectSettings{
				ProjectID:          c.Param("projectID"),
				TaskWeight:         req.TaskWeight,
				PeerReviewWeight:   req.PeerReviewWeight,
				CommitWeight:       req.CommitWeight,
				LatePenaltyWeight:  req.LatePenaltyWeight,
				DetectionThreshold: req.DetectionThreshold,
				ExcludeLeads:       req.ExcludeLeads,
			}
			if err := eng.UpdateSettings(ps); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, ps)
		})

		projects.POST("/members", func(c *gin.Context) {
			var req struct {
				StudentID  string `json:"student_id" binding:"required"`
				GroupID    string `json:"group_id" binding:"required"`
				IsLead     bool   `json:"is_lead"`
				IsExcluded bool   `json:"is_excluded"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, errors.NewValidationError("invalid request body"))
				return
			}
			m := &database.GroupMember{
				GroupID:    req.GroupID,
				ProjectID:  c.Param("projectID"),
				StudentID:  req.StudentID,
				IsLead:     req.IsLead,
				IsExcluded: req.IsExcluded,
			}
			if err := eng.RegisterMember(m); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, m)
		})

		projects.POST("/signals/tasks", func(c *gin.Context) {
			var req struct {
				StudentID      string `json:"student_id" binding:"required"`
				TotalTasks     int    `json:"total_tasks"`
				CompletedTasks int    `json:"completed_tasks"`
				LateTasks      int    `json:"late_tasks"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, errors.NewValidationError("invalid request body"))
				return
			}
			ts := &database.TaskStats{
				StudentID:      req.StudentID,
				ProjectID:      c.Param("projectID"),
				TotalTasks:     req.TotalTasks,
				CompletedTasks: req.CompletedTasks,
				LateTasks:      req.LateTasks,
			}
			if err := eng.IngestTaskStats(ts); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, ts)
		})

		projects.POST("/signals/commits", func(c *gin.Context) {
			var req struct {
				StudentID   string `json:"student_id" binding:"required"`
				CommitCount int    `json:"commit_count"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, errors.NewValidationError("invalid request body"))
				return
			}
			cs := &database.CommitStats{
				StudentID:   req.StudentID,
				ProjectID:   c.Param("projectID"),
				CommitCount: req.CommitCount,
			}
			if err := eng.IngestCommitStats(cs); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, cs)
		})

		projects.POST("/reviews", func(c *gin.Context) {
			var req struct {
				ReviewerID       string  `json:"reviewer_id" binding:"required"`
				RevieweeID       string  `json:"reviewee_id" binding:"required"`
				Week             int     `json:"week" binding:"required"`
				CompletionScore  float64 `json:"completion_score" binding:"required"`
				CooperationScore float64 `json:"cooperation_score" binding:"required"`
				Comment          string  `json:"comment"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, errors.NewValidationError("invalid request body"))
				return
			}
			pr, err := eng.SubmitReview(req.ReviewerID, req.RevieweeID, c.Param("projectID"),
				req.Week, req.CompletionScore, req.CooperationScore, req.Comment)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, pr)
		})

		projects.GET("/reviews/gate/:studentID", func(c *gin.Context) {
			week, err := strconv.Atoi(c.DefaultQuery("week", "1"))
			if err != nil || week < 1 {
				respondError(c, errors.NewValidationError("week must be a positive integer"))
				return
			}
			st, err := eng.ReviewGate(c.Param("studentID"), c.Param("projectID"), week)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, st)
		})

		projects.POST("/scores/compute", func(c *gin.Context) {
			report, err := eng.ComputeProjectScores(c.Request.Context(), c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, report)
		})

		projects.GET("/scores", func(c *gin.Context) {
			scores, err := eng.ListScores(c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"scores": scores})
		})

		projects.POST("/scores/finalize", func(c *gin.Context) {
			n, err := eng.FinalizeScores(c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"finalized": n})
		})

		projects.POST("/scores/:studentID/compute", func(c *gin.Context) {
			score, err := eng.ComputeScore(c.Param("studentID"), c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, score)
		})

		projects.GET("/scores/:studentID", func(c *gin.Context) {
			score, err := eng.GetScore(c.Param("studentID"), c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, score)
		})

		projects.PUT("/scores/:studentID/adjust", func(c *gin.Context) {
			var req struct {
				Value      float64 `json:"value"`
				Reason     string  `json:"reason" binding:"required"`
				AdjustedBy string  `json:"adjusted_by" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, errors.NewValidationError("invalid request body"))
				return
			}
			score, err := eng.AdjustScore(c.Param("studentID"), c.Param("projectID"),
				req.Value, req.Reason, req.AdjustedBy)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, score)
		})

		projects.GET("/scores/:studentID/adjustments", func(c *gin.Context) {
			audit, err := eng.ListAdjustments(c.Param("studentID"), c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"adjustments": audit})
		})

		projects.POST("/detect", func(c *gin.Context) {
			report, err := eng.DetectFreeRiders(c.Request.Context(), c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, report)
		})

		projects.GET("/risk-scores", func(c *gin.Context) {
			risks, err := eng.GetRiskScores(c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"risk_scores": risks})
		})

		projects.GET("/cases", func(c *gin.Context) {
			includeResolved := c.Query("include_resolved") == "true"
			list, err := eng.Cases(c.Param("projectID"), includeResolved)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"cases": list})
		})

		projects.POST("/cases", func(c *gin.Context) {
			var req struct {
				StudentID string `json:"student_id" binding:"required"`
				Notes     string `json:"notes"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, errors.NewValidationError("invalid request body"))
				return
			}
			flagged, created, err := eng.FlagStudent(req.StudentID, c.Param("projectID"), req.Notes)
			if err != nil {
				respondError(c, err)
				return
			}
			status := http.StatusOK
			if created {
				status = http.StatusCreated
			}
			c.JSON(status, flagged)
		})

		projects.GET("/students/:studentID/evidence", func(c *gin.Context) {
			ev, err := eng.GetStudentEvidence(c.Param("studentID"), c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, ev)
		})

		projects.GET("/students/:studentID/can-detect", func(c *gin.Context) {
			ok, err := eng.CanDetectAgain(c.Param("studentID"), c.Param("projectID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"can_detect": ok})
		})
	}

	caseRoutes := r.Group("/cases/:caseID")
	{
		caseRoutes.GET("", func(c *gin.Context) {
			found, err := eng.GetCase(c.Param("caseID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, found)
		})

		caseRoutes.GET("/evidence", func(c *gin.Context) {
			ev, err := eng.GetEvidence(c.Param("caseID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, ev)
		})

		caseRoutes.POST("/contact", func(c *gin.Context) {
			contacted, err := eng.ContactCase(c.Param("caseID"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, contacted)
		})

		caseRoutes.POST("/resolve", func(c *gin.Context) {
			var req struct {
				Resolution string `json:"resolution" binding:"required"`
				Notes      string `json:"notes" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, errors.NewValidationError("invalid request body"))
				return
			}
			resolved, err := eng.ResolveCase(c.Param("caseID"), req.Resolution, req.Notes)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, resolved)
		})
	}

	return r
}

func respondError(c *gin.Context, err error) {
	appErr := errors.ToAppError(err)
	errors.LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
}
