package health

import (
	"context"
	"sync"
	"time"

	"github.com/freewebtopdf/uerename/internal/domain"
)

const (
	ComponentBackups = "backups"
	ComponentHistory = "history"
	ComponentCache   = "cache"
)

// SystemHealthChecker aggregates the health of the backup store, the history log and the metadata cache
type SystemHealthChecker struct {
	backups domain.BackupStore
	history domain.HistoryStore
	cache   domain.MetadataCache

	// Health check configuration
	timeout   time.Duration
	startTime time.Time

	// Cached health status to avoid probing the disk on every request
	lastCheck   time.Time
	lastHealth  domain.SystemHealth
	cacheTTL    time.Duration
	healthMutex sync.Mutex
}

// NewSystemHealthChecker creates a new system health checker
func NewSystemHealthChecker(
	backups domain.BackupStore,
	history domain.HistoryStore,
	cache domain.MetadataCache,
) *SystemHealthChecker {
	return &SystemHealthChecker{
		backups:   backups,
		history:   history,
		cache:     cache,
		timeout:   5 * time.Second,
		cacheTTL:  5 * time.Second,
		startTime: time.Now(),
	}
}

// CheckHealth performs a health check of every component
func (h *SystemHealthChecker) CheckHealth(ctx context.Context) domain.SystemHealth {
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()

	if !h.lastCheck.IsZero() && time.Since(h.lastCheck) < h.cacheTTL {
		return h.lastHealth
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	now := time.Now()
	components := make(map[string]domain.HealthStatus, 3)
	overallStatus := domain.HealthStatusHealthy

	for _, name := range []string{ComponentBackups, ComponentHistory, ComponentCache} {
		status := h.CheckComponent(checkCtx, name)
		components[name] = status
		overallStatus = aggregateStatus(overallStatus, status.Status)
	}

	systemHealth := domain.SystemHealth{
		Status:     overallStatus,
		Timestamp:  now,
		Components: components,
		Metrics:    h.collectMetrics(),
		Uptime:     time.Since(h.startTime),
	}

	h.lastCheck = now
	h.lastHealth = systemHealth

	return systemHealth
}

// CheckComponent performs a health check on a specific component
func (h *SystemHealthChecker) CheckComponent(ctx context.Context, component string) domain.HealthStatus {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	switch component {
	case ComponentBackups:
		return h.backups.HealthCheck(checkCtx)
	case ComponentHistory:
		return h.history.HealthCheck(checkCtx)
	case ComponentCache:
		return h.cache.HealthCheck(checkCtx)
	default:
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Unknown component",
			Timestamp: time.Now(),
			Details: map[string]any{
				"component": component,
				"error":     "Component not found",
			},
		}
	}
}

// IsHealthy returns true if the system is healthy
func (h *SystemHealthChecker) IsHealthy(ctx context.Context) bool {
	return h.CheckHealth(ctx).Status == domain.HealthStatusHealthy
}

// aggregateStatus determines the overall status based on component statuses
func aggregateStatus(current, componentStatus string) string {
	// Priority: unhealthy > degraded > healthy
	statusPriority := map[string]int{
		domain.HealthStatusHealthy:   0,
		domain.HealthStatusDegraded:  1,
		domain.HealthStatusUnhealthy: 2,
	}

	if statusPriority[componentStatus] > statusPriority[current] {
		return componentStatus
	}
	return current
}

func (h *SystemHealthChecker) collectMetrics() map[string]any {
	cacheStats := h.cache.Stats()
	return map[string]any{
		"cache": map[string]any{
			"hits":      cacheStats.Hits,
			"misses":    cacheStats.Misses,
			"size":      cacheStats.Size,
			"max_size":  cacheStats.MaxSize,
			"hit_ratio": cacheStats.HitRatio,
		},
		"system": map[string]any{
			"uptime_seconds": time.Since(h.startTime).Seconds(),
		},
	}
}
