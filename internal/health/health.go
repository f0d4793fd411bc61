package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// Pinger is anything with a liveness probe, e.g. the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db        *pgxpool.Pool
	cache     Pinger
	storeMode string
}

type HealthStatus struct {
	Status    string          `json:"status"`
	StoreMode string          `json:"store_mode"`
	Database  ComponentHealth `json:"database"`
	Cache     ComponentHealth `json:"cache"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
}

type DetailedStatus struct {
	HealthStatus
	System SystemStats `json:"system"`
}

type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    uint64  `json:"memory_used_bytes"`
	MemoryTotal   uint64  `json:"memory_total_bytes"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskUsed      uint64  `json:"disk_used_bytes"`
	DiskTotal     uint64  `json:"disk_total_bytes"`
}

// NewHealthChecker builds a checker. db is nil when running on the local
// store; cache may be nil when Redis is off.
func NewHealthChecker(db *pgxpool.Pool, cache Pinger, storeMode string) *HealthChecker {
	return &HealthChecker{db: db, cache: cache, storeMode: storeMode}
}

// CheckBasic reports unhealthy only when the database is configured and
// unreachable. A broken cache degrades performance, not correctness.
func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	dbHealth := h.checkDatabase(ctx)
	cacheHealth := h.checkCache(ctx)

	status := StatusHealthy
	if dbHealth.Status == StatusUnhealthy {
		status = StatusUnhealthy
	}

	return HealthStatus{
		Status:    status,
		StoreMode: h.storeMode,
		Database:  dbHealth,
		Cache:     cacheHealth,
	}
}

func (h *HealthChecker) CheckDetailed(ctx context.Context) DetailedStatus {
	return DetailedStatus{
		HealthStatus: h.CheckBasic(ctx),
		System:       collectSystemStats(),
	}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) ComponentHealth {
	if h.db == nil {
		return ComponentHealth{Status: StatusDisabled}
	}
	return probe(ctx, h.db.Ping)
}

func (h *HealthChecker) checkCache(ctx context.Context) ComponentHealth {
	if h.cache == nil {
		return ComponentHealth{Status: StatusDisabled}
	}
	return probe(ctx, h.cache.Ping)
}

func probe(ctx context.Context, ping func(ctx context.Context) error) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{
			Status:       StatusUnhealthy,
			ResponseTime: responseTime,
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       StatusHealthy,
		ResponseTime: responseTime,
	}
}

func collectSystemStats() SystemStats {
	var stats SystemStats

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = memInfo.UsedPercent
		stats.MemoryUsed = memInfo.Used
		stats.MemoryTotal = memInfo.Total
	}

	if diskInfo, err := disk.Usage("/"); err == nil {
		stats.DiskPercent = diskInfo.UsedPercent
		stats.DiskUsed = diskInfo.Used
		stats.DiskTotal = diskInfo.Total
	}

	return stats
}
