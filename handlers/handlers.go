package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"capture-analyze-pipeline/database"
	"capture-analyze-pipeline/models"
	"capture-analyze-pipeline/pipeline"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// Handlers represents the HTTP handlers
type Handlers struct {
	db       *database.Database
	pipeline *pipeline.Service
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *database.Database, pipe *pipeline.Service) *Handlers {
	return &Handlers{db: db, pipeline: pipe}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "capture-analyze-pipeline",
	})
}

// Login returns 200 when the admin credentials are valid. The auth middleware
// has already rejected bad credentials by the time this runs.
func (h *Handlers) Login(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "login successful"})
}

// Upload accepts one capture frame from the camera client and runs the
// ingestion pipeline over it.
func (h *Handlers) Upload(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	result, err := h.pipeline.Ingest(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not decode image"})
			return
		}
		log.WithError(err).Error("Ingestion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLogs returns one page of capture logs with an optional anomaly filter.
func (h *Handlers) GetLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	var isAnomaly *bool
	if v := c.Query("is_anomaly"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid is_anomaly value"})
			return
		}
		isAnomaly = &parsed
	}

	result, err := h.db.ListLogs(c.Request.Context(), page, perPage, isAnomaly)
	if err != nil {
		log.WithError(err).Error("Failed to list logs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLog returns one capture log by id.
func (h *Handlers) GetLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log id"})
		return
	}

	rec, err := h.db.GetLog(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "log not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// GetStats returns aggregate counters over the capture log.
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.db.GetStats(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to get stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetSettings returns the watch configuration.
func (h *Handlers) GetSettings(c *gin.Context) {
	settings, err := h.db.GetSettings(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to read settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read settings"})
		return
	}
	if settings == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings sets anomalies_to_watch. Accepts a JSON body or the query
// parameter the capture panel sends.
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var req struct {
		AnomaliesToWatch string `json:"anomalies_to_watch"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AnomaliesToWatch == "" {
		req.AnomaliesToWatch = c.Query("anomalies_to_watch")
	}
	if req.AnomaliesToWatch == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "anomalies_to_watch is required"})
		return
	}

	if err := h.db.UpdateSettings(c.Request.Context(), req.AnomaliesToWatch); err != nil {
		log.WithError(err).Error("Failed to update settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update settings"})
		return
	}

	c.JSON(http.StatusOK, models.Settings{ID: 1, AnomaliesToWatch: req.AnomaliesToWatch})
}

// GetEmailList returns all alert recipients.
func (h *Handlers) GetEmailList(c *gin.Context) {
	recipients, err := h.db.ListRecipients(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list recipients")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recipients"})
		return
	}

	c.JSON(http.StatusOK, recipients)
}

// AddEmail adds one alert recipient.
func (h *Handlers) AddEmail(c *gin.Context) {
	var req struct {
		Email string  `json:"email"`
		Name  *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		req.Email = c.Query("email")
		if name := c.Query("name"); name != "" {
			req.Name = &name
		}
	}
	if req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	id, err := h.db.AddRecipient(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		log.WithError(err).Error("Failed to add recipient")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add recipient"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "email": req.Email, "name": req.Name})
}

// DeleteEmail removes one alert recipient by id.
func (h *Handlers) DeleteEmail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient id"})
		return
	}

	if err := h.db.DeleteRecipient(c.Request.Context(), id); err != nil {
		log.WithError(err).Error("Failed to delete recipient")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete recipient"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
