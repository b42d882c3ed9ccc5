// Stateful CPU utilization estimator. Utilization is derived from the delta
// between two successive per-CPU tick readings; a single reading carries no
// rate information, so the first call of a process is always a warm-up.
package sampler

import (
	"math"

	"github.com/shirou/gopsutil/v3/cpu"
)

// CPUState holds the per-logical-CPU tick sums captured at the previous
// sampling instant. It is owned by the caller and threaded through Sample;
// a nil state means "no prior reading".
type CPUState struct {
	Idle  []float64
	Total []float64
}

// readTicks converts gopsutil per-CPU times into (idle, total) tick sums.
// Total covers the user, nice, system, idle and interrupt categories.
func readTicks(times []cpu.TimesStat) CPUState {
	state := CPUState{
		Idle:  make([]float64, len(times)),
		Total: make([]float64, len(times)),
	}
	for i, t := range times {
		state.Idle[i] = t.Idle
		state.Total[i] = t.User + t.Nice + t.System + t.Idle + t.Irq + t.Softirq + t.Steal
	}
	return state
}

// utilization computes the combined CPU utilization percentage between two
// readings. With no prior state it returns 0 (warm-up). A non-positive
// total delta (clock anomaly, zero elapsed ticks) also yields 0 rather than
// a negative or divide-by-zero result.
func utilization(prev *CPUState, cur CPUState) float64 {
	if prev == nil {
		return 0
	}

	var idleDelta, totalDelta float64
	n := len(cur.Idle)
	if len(prev.Idle) < n {
		n = len(prev.Idle)
	}
	for i := 0; i < n; i++ {
		idleDelta += cur.Idle[i] - prev.Idle[i]
		totalDelta += cur.Total[i] - prev.Total[i]
	}

	if totalDelta <= 0 {
		return 0
	}

	pct := 100 * (1 - idleDelta/totalDelta)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return round1(pct)
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
