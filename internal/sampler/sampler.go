// Package sampler produces point-in-time snapshots of system state.
// All metrics are read fresh from the OS on each call via gopsutil;
// the only cross-call state is the CPU tick reading, which the caller
// owns and threads through explicitly.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/sylon-io/agent/internal/models"
)

// timestampLayout is ISO-8601 at second precision with a literal Z.
const timestampLayout = "2006-01-02T15:04:05Z"

// IdentitySource provides the stable machine identifier embedded in
// every snapshot.
type IdentitySource interface {
	Resolve() string
}

// Sampler collects system metrics into MetricSnapshot values.
type Sampler struct {
	identity IdentitySource
	logger   *zap.Logger
}

// New creates a Sampler using the given identity source.
func New(identity IdentitySource, logger *zap.Logger) *Sampler {
	return &Sampler{
		identity: identity,
		logger:   logger,
	}
}

// Sample reads all metrics and returns a fresh snapshot plus the CPU state
// to thread into the next call. prev is nil on the first call, which yields
// a 0% CPU reading while the baseline is established.
//
// A returned error means the tick should be skipped; the returned state is
// still valid to carry forward.
func (s *Sampler) Sample(ctx context.Context, prev *CPUState) (models.MetricSnapshot, *CPUState, error) {
	times, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return models.MetricSnapshot{}, prev, fmt.Errorf("reading cpu times: %w", err)
	}
	state := readTicks(times)

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return models.MetricSnapshot{}, &state, fmt.Errorf("reading host info: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.MetricSnapshot{}, &state, fmt.Errorf("reading memory: %w", err)
	}

	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return models.MetricSnapshot{}, &state, fmt.Errorf("reading disk usage: %w", err)
	}

	snapshot := models.MetricSnapshot{
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(timestampLayout),
		Hostname:  info.Hostname,
		MachineID: s.identity.Resolve(),
		Platform: models.Platform{
			System:  info.OS,
			Release: info.KernelVersion,
			Version: fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion),
		},
		CPUPercent:    utilization(prev, state),
		Memory:        memoryMetrics(vm),
		Disk:          diskMetrics(du),
		UptimeSeconds: int64(info.Uptime),
		IPv4:          s.primaryIPv4(ctx),
	}

	snapshot.CPUCountLogical, snapshot.CPUCountPhysical = s.cpuCounts(ctx, len(times))

	// Load averages are best-effort: unavailable on some platforms,
	// reported as zeros rather than failing the tick.
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snapshot.LoadAvg = models.LoadAvg{
			Load1:  avg.Load1,
			Load5:  avg.Load5,
			Load15: avg.Load15,
		}
	} else {
		s.logger.Debug("Load averages unavailable", zap.Error(err))
	}

	return snapshot, &state, nil
}

// cpuCounts returns the logical and physical CPU counts. When the physical
// topology cannot be read, the physical count falls back to the logical
// count — a documented approximation.
func (s *Sampler) cpuCounts(ctx context.Context, fallback int) (logical, physical int) {
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil || logical == 0 {
		logical = fallback
	}

	physical, err = cpu.CountsWithContext(ctx, false)
	if err != nil || physical == 0 {
		physical = logical
	}
	return logical, physical
}

// memoryMetrics maps a gopsutil reading into the payload shape. Percent is
// derived from available memory (which counts reclaimable caches as used),
// matching what the collection API has always received.
func memoryMetrics(vm *mem.VirtualMemoryStat) models.Memory {
	m := models.Memory{
		Total:     vm.Total,
		Available: vm.Available,
	}
	if vm.Total > 0 {
		m.Percent = round1(100 * float64(vm.Total-vm.Available) / float64(vm.Total))
	}
	return m
}

// diskMetrics maps a gopsutil reading into the payload shape. Total is
// normalized to used+free (statfs reserves blocks, so the raw total can
// disagree) and percent is recomputed so the fields stay consistent.
func diskMetrics(du *disk.UsageStat) models.Disk {
	d := models.Disk{
		Used: du.Used,
		Free: du.Free,
	}
	d.Total = d.Used + d.Free
	if d.Total > 0 {
		d.Percent = round1(100 * float64(d.Used) / float64(d.Total))
	}
	return d
}
