package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-crm-backend/internal/jobs"
)

// RegisterJobRoutes registers POST /jobs/:name/trigger, which enqueues a job
// trigger for the worker.
func RegisterJobRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.POST("/jobs/:name/trigger", func(c *gin.Context) {
		name := c.Param("name")
		if !jobs.IsKnown(name) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown_job", "jobs": jobs.Names})
			return
		}
		if !cfg.Jobs.Enabled() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job_queue_not_configured"})
			return
		}

		trigger := jobs.NewTrigger(name, c.GetHeader("X-Request-Id"))
		attrs := map[string]string{
			"job":            trigger.Job,
			"trigger_id":     trigger.TriggerID,
			"correlation_id": trigger.CorrelationID,
		}
		if err := cfg.Jobs.PublishJSON(c.Request.Context(), trigger, attrs); err != nil {
			log.Printf("[api] enqueue job=%s failed: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed", "detail": err.Error()})
			return
		}

		log.Printf("[api] enqueued job=%s trigger=%s", name, trigger.TriggerID)
		c.JSON(http.StatusAccepted, gin.H{"job": name, "trigger_id": trigger.TriggerID})
	})
}

// NewRouter builds the full API router: recovery, health and all routes.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.RequestLogging {
		r.Use(gin.Logger())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterCRMRoutes(r, cfg)
	RegisterJobRoutes(r, cfg)
	return r
}
