// Package admin serves the admin dashboard summary.
package admin

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/pkg/logger"
)

// SystemStatus describes the host running the portal.
type SystemStatus struct {
	Hostname      string    `json:"hostname"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	CPUPercent    float64   `json:"cpu_percent"`
	CPUs          int       `json:"cpus"`
	MemoryTotal   uint64    `json:"memory_total"`
	MemoryUsed    uint64    `json:"memory_used"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskTotal     uint64    `json:"disk_total"`
	DiskUsed      uint64    `json:"disk_used"`
	DiskPercent   float64   `json:"disk_percent"`
	Goroutines    int       `json:"goroutines"`
	Warnings      []string  `json:"warnings,omitempty"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Dashboard is the admin landing payload.
type Dashboard struct {
	Stats  billing.Stats `json:"stats"`
	System SystemStatus  `json:"system"`
}

// Service aggregates dashboard data.
type Service struct {
	stats    storage.StatsStore
	diskPath string
	log      *logger.Logger
}

// New constructs an admin service. diskPath is the mount reported for disk
// usage; it defaults to "/".
func New(stats storage.StatsStore, diskPath string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("admin")
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &Service{stats: stats, diskPath: diskPath, log: log}
}

// Stats returns the business counters.
func (s *Service) Stats(ctx context.Context) (billing.Stats, error) {
	return s.stats.Stats(ctx)
}

// Dashboard returns the counters and the host status.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	st, err := s.stats.Stats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Stats: st, System: s.System(ctx)}, nil
}

// System samples host metrics. Probes that fail are reported as warnings
// rather than errors since some hosts restrict /proc access.
func (s *Service) System(ctx context.Context) SystemStatus {
	status := SystemStatus{
		CPUs:        runtime.NumCPU(),
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now().UTC(),
	}
	warn := func(probe string, err error) {
		s.log.WithError(err).WithField("probe", probe).Debug("system probe failed")
		status.Warnings = append(status.Warnings, probe+": "+err.Error())
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		warn("host", err)
	} else {
		status.Hostname = info.Hostname
		status.UptimeSeconds = info.Uptime
	}
	if pct, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err != nil {
		warn("cpu", err)
	} else if len(pct) > 0 {
		status.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		warn("memory", err)
	} else {
		status.MemoryTotal = vm.Total
		status.MemoryUsed = vm.Used
		status.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.UsageWithContext(ctx, s.diskPath); err != nil {
		warn("disk", err)
	} else {
		status.DiskTotal = du.Total
		status.DiskUsed = du.Used
		status.DiskPercent = du.UsedPercent
	}
	return status
}
