// Package health provides health checking for the prescription analysis API.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/rxguard/prescription-api/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface.
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
}

// NewHealthChecker creates a new health checker with injected dependencies.
func NewHealthChecker(dataStore interfaces.DataStore) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
	}
}

// HealthCheck returns HTTP-specific health data derived from reference data
// freshness. Used by the /health endpoint.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	interactions := h.dataStore.GetInteractions()
	ranges := h.dataStore.GetAgeBands()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := time.Since(lastUpdate)

	switch {
	case len(interactions) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"interactions":   len(interactions),
		"age_bands":      len(ranges),
		"is_updating":    isUpdating,
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled reference data reload.
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	now := time.Now()

	sixAM := time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, now.Location())
	sixPM := time.Date(now.Year(), now.Month(), now.Day(), 18, 0, 0, 0, now.Location())

	if now.Before(sixAM) {
		return sixAM
	}

	if now.Before(sixPM) {
		return sixPM
	}

	return sixAM.AddDate(0, 0, 1)
}
