// Package models defines the metric payload structures used throughout the agent.
// These structures are serialized to JSON for transmission to the API.
package models

// MetricSnapshot represents a single point-in-time collection of all system
// metrics. It is the exact shape of the JSON document POSTed to the endpoint.
// A snapshot is immutable once assembled; a fresh one is built on every tick.
type MetricSnapshot struct {
	Timestamp        string   `json:"timestamp"`
	Hostname         string   `json:"hostname"`
	MachineID        string   `json:"machine_id"`
	Platform         Platform `json:"platform"`
	CPUPercent       float64  `json:"cpu_percent"`
	CPUCountLogical  int      `json:"cpu_count_logical"`
	CPUCountPhysical int      `json:"cpu_count_physical"`
	Memory           Memory   `json:"memory"`
	Disk             Disk     `json:"disk"`
	LoadAvg          LoadAvg  `json:"loadavg"`
	UptimeSeconds    int64    `json:"uptime_seconds"`
	IPv4             *string  `json:"ipv4"`
}

// Platform describes the host operating system.
type Platform struct {
	System  string `json:"system"`
	Release string `json:"release"`
	Version string `json:"version"`
}

// Memory holds physical memory totals in bytes. Percent is computed from
// available memory, which includes reclaimable caches as "used" — the value
// matches what the collection API has always received, so it is kept as-is.
type Memory struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Percent   float64 `json:"percent"`
}

// Disk holds root-filesystem usage in bytes. The fields are internally
// consistent: Used + Free == Total and Percent == 100*Used/Total rounded
// to one decimal.
type Disk struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// LoadAvg holds the 1/5/15-minute load averages.
type LoadAvg struct {
	Load1  float64 `json:"1"`
	Load5  float64 `json:"5"`
	Load15 float64 `json:"15"`
}
