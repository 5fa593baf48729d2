package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Vargock/Mahaon-Parser/internal/parser"
)

// StartParseRequest represents the job start request. All fields are
// optional: a product URL parses one item, a category URL parses one
// listing, neither parses the whole catalog.
type StartParseRequest struct {
	URL          string `json:"url" binding:"omitempty,url"`
	CategoryURL  string `json:"category_url" binding:"omitempty,url"`
	CategoryName string `json:"category_name" binding:"omitempty,max=255"`
	MaxPages     int    `json:"max_pages" binding:"omitempty,min=1"`
	MaxProducts  int    `json:"max_products" binding:"omitempty,min=1"`
}

// StartParseHandler handles parse job start requests
func StartParseHandler(parseService *parser.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartParseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Printf("Parse start validation error: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid parse request",
				"details": err.Error(),
			})
			return
		}

		target := parser.Target{
			ProductURL:   strings.TrimSpace(req.URL),
			CategoryURL:  strings.TrimSpace(req.CategoryURL),
			CategoryName: strings.TrimSpace(req.CategoryName),
		}
		limits := parser.Limits{
			MaxPages:    req.MaxPages,
			MaxProducts: req.MaxProducts,
		}

		jobID, err := parseService.Start(target, limits)
		if err != nil {
			if errors.Is(err, parser.ErrAlreadyRunning) {
				c.JSON(http.StatusConflict, gin.H{"error": "A parse job is already running"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		log.Printf("Accepted parse job %s", jobID)
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": parseService.Status()})
	}
}

// ConfirmParseHandler handles confirmation of a job paused at the size gate
func ConfirmParseHandler(parseService *parser.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := parseService.Confirm(); err != nil {
			if errors.Is(err, parser.ErrNoPendingConfirmation) {
				c.JSON(http.StatusConflict, gin.H{"error": "No parse job is awaiting confirmation"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm parse job"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": parseService.Status()})
	}
}

// CancelParseHandler handles cancellation of the live job
func CancelParseHandler(parseService *parser.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := parseService.Cancel(); err != nil {
			if errors.Is(err, parser.ErrNoActiveJob) {
				c.JSON(http.StatusConflict, gin.H{"error": "No active parse job to cancel"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel parse job"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": parseService.Status()})
	}
}

// ParseStatusHandler returns the current job snapshot for pollers
func ParseStatusHandler(parseService *parser.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, parseService.Snapshot())
	}
}

// ParseLogsHandler returns the full ordered log of the current job
func ParseLogsHandler(parseService *parser.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, logs := parseService.LogSnapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"log_count": len(logs),
			"logs":      logs,
		})
	}
}
