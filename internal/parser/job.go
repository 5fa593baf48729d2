package parser

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"
)

var (
	// ErrAlreadyRunning is returned by Start while a live job exists
	ErrAlreadyRunning = errors.New("a parse job is already running")
	// ErrNoPendingConfirmation is returned by Confirm when no job awaits confirmation
	ErrNoPendingConfirmation = errors.New("no parse job is awaiting confirmation")
	// ErrNoActiveJob is returned by Cancel when no live job exists
	ErrNoActiveJob = errors.New("no active parse job")
	// ErrInvalidTarget is returned by Start when the target cannot be interpreted
	ErrInvalidTarget = errors.New("parse target must be a product URL, a category URL, or empty for a full crawl")
)

// Target is the starting point of a job: a single product page, one
// category listing, or (when both URLs are empty) every category on the site.
type Target struct {
	ProductURL   string
	CategoryURL  string
	CategoryName string
}

// Limits bound the scope of a crawl. Zero means unbounded.
type Limits struct {
	MaxPages    int
	MaxProducts int
}

// Snapshot is the non-blocking read-only projection consumed by pollers
type Snapshot struct {
	JobID         string `json:"job_id,omitempty"`
	Status        Status `json:"status"`
	EstimatedSize int    `json:"estimated_size"`
	LogLength     int    `json:"log_count"`
	ErrorDetail   string `json:"error_detail,omitempty"`
}

// workItem is one product URL tagged with the category it was found under
type workItem struct {
	url      string
	category string
}

// job holds the mutable state of the single process-wide parse job.
// All fields are guarded by the Service mutex.
type job struct {
	id              string
	target          Target
	limits          Limits
	status          Status
	estimatedSize   int
	cancelRequested bool
	errorDetail     string
	pending         []workItem
	ctx             context.Context
	cancel          context.CancelFunc
}

// Config holds orchestrator configuration
type Config struct {
	// ConfirmThreshold is the estimated product count above which a job
	// pauses for explicit confirmation before bulk fetching begins.
	ConfirmThreshold int
	// FetchTimeout bounds a single product fetch so a hung request is
	// treated as a per-item fault instead of stalling the job. Zero disables
	// the deadline.
	FetchTimeout time.Duration
	// RequestsPerSecond paces product page fetches to stay polite to the
	// target site.
	RequestsPerSecond float64
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() *Config {
	return &Config{
		ConfirmThreshold:  5,
		FetchTimeout:      30 * time.Second,
		RequestsPerSecond: 1,
	}
}

// ConfigFromEnv creates orchestrator configuration from environment variables
func ConfigFromEnv() *Config {
	config := DefaultConfig()

	if v := os.Getenv("PARSE_CONFIRM_THRESHOLD"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.ConfirmThreshold = parsed
		} else {
			log.Printf("Invalid PARSE_CONFIRM_THRESHOLD %q, using default %d", v, config.ConfirmThreshold)
		}
	}

	if v := os.Getenv("PARSE_FETCH_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed >= 0 {
			config.FetchTimeout = parsed
		} else {
			log.Printf("Invalid PARSE_FETCH_TIMEOUT %q, using default %s", v, config.FetchTimeout)
		}
	}

	if v := os.Getenv("PARSE_RATE_LIMIT"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			config.RequestsPerSecond = parsed
		} else {
			log.Printf("Invalid PARSE_RATE_LIMIT %q, using default %g", v, config.RequestsPerSecond)
		}
	}

	return config
}
