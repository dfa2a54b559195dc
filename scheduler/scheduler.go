// Package scheduler provides automated reference data reloading and staleness
// monitoring for the prescription API. It handles cron-based reloads and
// coordinates data refresh operations with the data container using
// dependency injection.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
)

// Compile-time check to ensure Scheduler implements the Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles reference data reloads and staleness monitoring using
// dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	loader    interfaces.ReferenceLoader
	validator interfaces.InputValidator
	scheduler *gocron.Scheduler
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.ReferenceLoader, validator interfaces.InputValidator) *Scheduler {
	return &Scheduler{
		dataStore: dataStore,
		loader:    loader,
		validator: validator,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start performs the initial data load and schedules the periodic reloads
func (s *Scheduler) Start() error {
	// Initial load
	if err := s.reloadData(); err != nil {
		logging.Error("Failed to perform initial data load", "error", err)
		return fmt.Errorf("initial data load failed: %w", err)
	}

	// Schedule reloads at 06:00 and 18:00 daily
	_, err := s.scheduler.Every(1).Days().At("06:00;18:00").Do(func() {
		if err := s.reloadData(); err != nil {
			logging.Error("Failed to reload reference data", "error", err)
		}
	})

	if err != nil {
		logging.Error("Failed to schedule reloads", "error", err)
		return fmt.Errorf("failed to schedule reloads: %w", err)
	}

	s.scheduler.StartAsync()

	// Start staleness monitoring
	s.startStalenessMonitoring()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// reloadData performs a complete reference data reload. A reload that fails
// validation leaves the previous generation in place.
func (s *Scheduler) reloadData() error {
	// Prevent concurrent reloads
	if !s.dataStore.BeginUpdate() {
		logging.Info("Reload already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info(fmt.Sprintf("Starting reference data reload at: %s", time.Now().Format(time.RFC3339)))
	start := time.Now()

	newSet, err := s.loader.LoadAll()
	if err != nil {
		logging.Error("Failed to load reference data", "error", err)
		return fmt.Errorf("failed to load reference data: %w", err)
	}

	if err := s.validator.ValidateReferenceSet(newSet); err != nil {
		logging.Error("Reference data failed integrity checks, keeping previous generation", "error", err)
		return fmt.Errorf("reference data validation failed: %w", err)
	}

	// Atomic swap using the injected data store
	s.dataStore.UpdateData(newSet)

	elapsed := time.Since(start)
	logging.Info("Reference data reload completed",
		"duration", elapsed.String(),
		"interaction_count", len(newSet.Interactions),
		"dosage_count", len(newSet.Dosages),
	)

	return nil
}

// startStalenessMonitoring watches for missed reloads
func (s *Scheduler) startStalenessMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			lastUpdate := s.dataStore.GetLastUpdated()
			if time.Since(lastUpdate) > 25*time.Hour {
				logging.Warn("Reference data hasn't been reloaded in over 25 hours")
			}
		}
	}()
}
