package parser

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Vargock/Mahaon-Parser/internal/db"
)

// Service orchestrates the single process-wide parse job. It drives the
// Extractor against the Store on a dedicated goroutine so that request
// handling never blocks on scraping I/O, and exposes lock-protected
// snapshot reads for pollers.
//
// One mutex guards both the job state and the log buffer: readers never
// observe a torn status/log pair, and a log append plus a status change is
// one atomic step.
type Service struct {
	extractor Extractor
	store     Store
	config    *Config
	limiter   *rate.Limiter

	mu   sync.Mutex
	job  *job
	logs LogBuffer
	wg   sync.WaitGroup
}

// NewService creates a new parse orchestrator
func NewService(extractor Extractor, store Store, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}

	return &Service{
		extractor: extractor,
		store:     store,
		config:    config,
		limiter:   rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
	}
}

// Start begins a new parse job for the given target. It is rejected with
// ErrAlreadyRunning while a live job exists; a terminal or idle previous job
// is overwritten and the log buffer is reset. Returns the new job ID.
func (s *Service) Start(target Target, limits Limits) (string, error) {
	if target.ProductURL != "" && target.CategoryURL != "" {
		return "", ErrInvalidTarget
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil && s.job.status.Live() {
		return "", ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:     uuid.NewString(),
		target: target,
		limits: limits,
		status: StatusInProgress,
		ctx:    ctx,
		cancel: cancel,
	}

	s.job = j
	s.logs.Reset()

	log.Printf("Parse job %s started: url=%q category=%q max_pages=%d max_products=%d",
		j.id, target.ProductURL, target.CategoryURL, limits.MaxPages, limits.MaxProducts)

	s.wg.Add(1)
	go s.run(j)

	return j.id, nil
}

// Confirm resumes a job paused at the confirmation gate. Rejected with
// ErrNoPendingConfirmation unless a job is awaiting confirmation.
func (s *Service) Confirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil || s.job.status != StatusAwaitingConfirmation {
		return ErrNoPendingConfirmation
	}

	j := s.job
	j.status = StatusInProgress
	items := j.pending
	j.pending = nil
	s.logs.Append("confirmed: parsing %d products", len(items))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processItems(j, items)
	}()

	return nil
}

// Cancel requests cancellation of the live job. A job awaiting confirmation
// is canceled immediately; an in-progress job stops cooperatively at its
// next per-item checkpoint. Rejected with ErrNoActiveJob when no live job
// exists.
func (s *Service) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil || !s.job.status.Live() {
		return ErrNoActiveJob
	}

	j := s.job
	j.cancelRequested = true
	j.cancel()

	if j.status == StatusAwaitingConfirmation {
		j.status = StatusCanceled
		j.pending = nil
		s.logs.Append("parse canceled by user")
	} else {
		s.logs.Append("cancellation requested, stopping after current product")
	}

	return nil
}

// Snapshot returns a consistent view of the job state for pollers.
// Non-blocking and always succeeds.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil {
		return Snapshot{Status: StatusIdle}
	}

	return Snapshot{
		JobID:         s.job.id,
		Status:        s.job.status,
		EstimatedSize: s.job.estimatedSize,
		LogLength:     s.logs.Len(),
		ErrorDetail:   s.job.errorDetail,
	}
}

// Status returns the current job status
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil {
		return StatusIdle
	}
	return s.job.status
}

// Logs returns the full log of the current job from its start
func (s *Service) Logs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logs.Lines()
}

// LogSnapshot returns the status together with the full log under a single
// lock acquisition, so pollers never observe a torn status/log pair
func (s *Service) LogSnapshot() (Status, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := StatusIdle
	if s.job != nil {
		status = s.job.status
	}
	return status, s.logs.Lines()
}

// Stop cancels any live job and waits for the worker to finish. Used during
// graceful shutdown.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.job != nil && s.job.status.Live() {
		s.job.cancelRequested = true
		s.job.cancel()
		if s.job.status == StatusAwaitingConfirmation {
			s.job.status = StatusCanceled
			s.job.pending = nil
		}
		s.logs.Append("parse canceled: service shutting down")
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("Parse service stopped")
	return nil
}

// run is the first phase of the worker: it collects the product URLs in
// scope, applies the confirmation gate, and hands off to processItems
func (s *Service) run(j *job) {
	defer s.wg.Done()

	// A single product skips the gate: the scope is known and tiny.
	if j.target.ProductURL != "" {
		category := j.target.CategoryName
		if category == "" {
			category = "Unknown"
		}
		s.setEstimate(j, 1)
		s.appendLog(j, "parsing single product %s", j.target.ProductURL)
		s.processItems(j, []workItem{{url: j.target.ProductURL, category: category}})
		return
	}

	items, err := s.collectItems(j)
	if err != nil {
		if s.isCancelRequested(j) {
			s.transition(j, StatusCanceled, "", "parse canceled while collecting product urls")
			return
		}
		s.transition(j, StatusError, err.Error(), "parse failed: %v", err)
		return
	}

	if s.isCancelRequested(j) {
		s.transition(j, StatusCanceled, "", "parse canceled before processing started")
		return
	}

	gated := s.setEstimate(j, len(items))
	if gated {
		s.parkForConfirmation(j, items)
		return
	}

	s.processItems(j, items)
}

// collectItems walks the category listings for the job target and returns
// the product URLs in scope. A listing that cannot be fetched at all is a
// fatal crawl fault.
func (s *Service) collectItems(j *job) ([]workItem, error) {
	if j.target.CategoryURL != "" {
		s.appendLog(j, "collecting product urls from %s", j.target.CategoryURL)

		urls, err := s.extractor.ListProductURLs(j.ctx, j.target.CategoryURL, j.limits)
		if err != nil {
			return nil, fmt.Errorf("category listing unreachable: %w", err)
		}

		category := j.target.CategoryName
		if category == "" {
			category = "Unknown"
		}

		items := make([]workItem, 0, len(urls))
		for _, u := range urls {
			items = append(items, workItem{url: u, category: category})
		}
		s.appendLog(j, "found %d products in %s", len(items), category)
		return items, nil
	}

	// No target URL at all: crawl every category on the site.
	s.appendLog(j, "collecting categories from site front page")
	categories, err := s.extractor.Categories(j.ctx)
	if err != nil {
		return nil, fmt.Errorf("category discovery failed: %w", err)
	}
	s.appendLog(j, "found %d categories", len(categories))

	var items []workItem
	for _, cat := range categories {
		if s.isCancelRequested(j) {
			return items, nil
		}

		limits := j.limits
		if j.limits.MaxProducts > 0 {
			remaining := j.limits.MaxProducts - len(items)
			if remaining <= 0 {
				break
			}
			limits.MaxProducts = remaining
		}

		urls, err := s.extractor.ListProductURLs(j.ctx, cat.URL, limits)
		if err != nil {
			return nil, fmt.Errorf("category listing unreachable for %q: %w", cat.Name, err)
		}

		for _, u := range urls {
			items = append(items, workItem{url: u, category: cat.Name})
		}
		s.appendLog(j, "found %d products in %s", len(urls), cat.Name)
	}

	return items, nil
}

// processItems is the crawl loop: one product per iteration, cancellation
// checked before each unit of work, per-item extractor faults logged and
// skipped, store faults fatal
func (s *Service) processItems(j *job, items []workItem) {
	processed := 0

	for _, item := range items {
		if s.isCancelRequested(j) {
			s.transition(j, StatusCanceled, "", "parse canceled: %d of %d products processed", processed, len(items))
			return
		}

		if err := s.limiter.Wait(j.ctx); err != nil {
			s.transition(j, StatusCanceled, "", "parse canceled: %d of %d products processed", processed, len(items))
			return
		}

		product, variants, err := s.fetchProduct(j, item.url)
		if err != nil {
			if j.ctx.Err() != nil {
				s.transition(j, StatusCanceled, "", "parse canceled: %d of %d products processed", processed, len(items))
				return
			}
			// Recoverable: skip this product, keep the job going.
			s.appendLog(j, "failed to parse product %s: %v", item.url, err)
			continue
		}

		if product.Category == "" {
			product.Category = item.category
		}

		productID, err := s.store.UpsertProduct(j.ctx, product)
		if err != nil {
			// A cancel mid-persist surfaces as a context error from the
			// store; that is user cancellation, not a store fault.
			if j.ctx.Err() != nil {
				s.transition(j, StatusCanceled, "", "parse canceled: %d of %d products processed", processed, len(items))
				return
			}
			s.transition(j, StatusError, fmt.Sprintf("store unavailable: %v", err), "parse failed: could not save product %s: %v", item.url, err)
			return
		}

		if err := s.store.UpsertVariants(j.ctx, productID, variants); err != nil {
			if j.ctx.Err() != nil {
				s.transition(j, StatusCanceled, "", "parse canceled: %d of %d products processed", processed, len(items))
				return
			}
			s.transition(j, StatusError, fmt.Sprintf("store unavailable: %v", err), "parse failed: could not save variants of %s: %v", item.url, err)
			return
		}

		processed++
		s.appendLog(j, "saved product %q with %d variants", product.Name, len(variants))
	}

	s.transition(j, StatusCompleted, "", "parse completed: %d of %d products processed", processed, len(items))
}

// fetchProduct applies the configured per-fetch deadline so a hung request
// surfaces as a per-item fault
func (s *Service) fetchProduct(j *job, productURL string) (*db.Product, []db.Variant, error) {
	ctx := j.ctx
	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(j.ctx, s.config.FetchTimeout)
		defer cancel()
	}
	return s.extractor.FetchProduct(ctx, productURL)
}

// setEstimate records the estimated job size and reports whether it exceeds
// the confirmation threshold
func (s *Service) setEstimate(j *job, estimate int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != j {
		return false
	}
	j.estimatedSize = estimate
	return estimate > s.config.ConfirmThreshold
}

// parkForConfirmation pauses the job until an operator confirms or cancels
func (s *Service) parkForConfirmation(j *job, items []workItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != j {
		return
	}
	// A cancel that lands between the last checkpoint and here must still
	// terminate the job; parking it would leave it live with no worker.
	if j.cancelRequested {
		j.status = StatusCanceled
		j.pending = nil
		s.logs.Append("parse canceled before processing started")
		log.Printf("Parse job %s finished with status %s", j.id, StatusCanceled)
		return
	}
	j.status = StatusAwaitingConfirmation
	j.pending = items
	s.logs.Append("found %d products, awaiting confirmation before continuing", len(items))
}

// transition atomically appends the final log line and moves the job to a
// terminal status
func (s *Service) transition(j *job, status Status, errorDetail string, format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != j {
		return
	}
	j.status = status
	j.errorDetail = errorDetail
	s.logs.Append(format, args...)
	log.Printf("Parse job %s finished with status %s", j.id, status)
}

// appendLog appends a progress line if the job still owns the buffer
func (s *Service) appendLog(j *job, format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != j {
		return
	}
	s.logs.Append(format, args...)
}

// isCancelRequested is the cooperative cancellation checkpoint
func (s *Service) isCancelRequested(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return j.cancelRequested
}
