package sampler

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"
)

type staticIdentity string

func (s staticIdentity) Resolve() string { return string(s) }

func TestDiskMetrics_InternallyConsistent(t *testing.T) {
	tests := []struct {
		name  string
		usage disk.UsageStat
	}{
		{"typical", disk.UsageStat{Total: 1000, Used: 400, Free: 550}},
		{"reserved_blocks_gap", disk.UsageStat{Total: 100, Used: 37, Free: 58}},
		{"empty_disk", disk.UsageStat{Total: 500, Used: 0, Free: 500}},
		{"zero_total", disk.UsageStat{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := diskMetrics(&tt.usage)
			if d.Used+d.Free != d.Total {
				t.Errorf("used(%d) + free(%d) != total(%d)", d.Used, d.Free, d.Total)
			}
			if d.Total == 0 {
				if d.Percent != 0 {
					t.Errorf("Percent = %g, want 0 for empty total", d.Percent)
				}
				return
			}
			want := round1(100 * float64(d.Used) / float64(d.Total))
			if d.Percent != want {
				t.Errorf("Percent = %g, want %g", d.Percent, want)
			}
		})
	}
}

func TestMemoryMetrics_PercentFromAvailable(t *testing.T) {
	vm := &mem.VirtualMemoryStat{
		Total:     1000,
		Available: 250,
		// Used deliberately disagrees so the test catches an
		// implementation that switches to used/total.
		Used: 600,
	}
	m := memoryMetrics(vm)
	if m.Percent != 75.0 {
		t.Errorf("Percent = %g, want 75.0 (derived from available)", m.Percent)
	}
	if m.Total != 1000 || m.Available != 250 {
		t.Errorf("totals not carried through: %+v", m)
	}
}

func TestFirstIPv4(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name   string
		ifaces []psnet.InterfaceStat
		want   *string
	}{
		{
			name: "skips_loopback_interface",
			ifaces: []psnet.InterfaceStat{
				{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: []psnet.InterfaceAddr{{Addr: "127.0.0.1/8"}}},
				{Name: "eth0", Flags: []string{"up"}, Addrs: []psnet.InterfaceAddr{{Addr: "192.168.1.5/24"}}},
			},
			want: str("192.168.1.5"),
		},
		{
			name: "skips_ipv6_then_picks_ipv4",
			ifaces: []psnet.InterfaceStat{
				{Name: "eth0", Flags: []string{"up"}, Addrs: []psnet.InterfaceAddr{
					{Addr: "fe80::1/64"},
					{Addr: "10.0.0.7/8"},
				}},
			},
			want: str("10.0.0.7"),
		},
		{
			name: "no_usable_address",
			ifaces: []psnet.InterfaceStat{
				{Name: "lo", Flags: []string{"loopback"}, Addrs: []psnet.InterfaceAddr{{Addr: "127.0.0.1/8"}}},
				{Name: "eth0", Flags: []string{"up"}, Addrs: []psnet.InterfaceAddr{{Addr: "fe80::1/64"}}},
			},
			want: nil,
		},
		{
			name: "plain_notation",
			ifaces: []psnet.InterfaceStat{
				{Name: "eth0", Flags: []string{"up"}, Addrs: []psnet.InterfaceAddr{{Addr: "172.16.0.3"}}},
			},
			want: str("172.16.0.3"),
		},
		{
			name:   "no_interfaces",
			ifaces: nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := firstIPv4(tt.ifaces)
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil:
				t.Errorf("firstIPv4() = %v, want %v", got, tt.want)
			case *got != *tt.want:
				t.Errorf("firstIPv4() = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestSample_EndToEnd(t *testing.T) {
	s := New(staticIdentity("test-machine"), zap.NewNop())
	ctx := context.Background()

	snap, state, err := s.Sample(ctx, nil)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if state == nil {
		t.Fatal("Sample() returned nil state")
	}

	if snap.MachineID != "test-machine" {
		t.Errorf("MachineID = %q", snap.MachineID)
	}
	if snap.Hostname == "" {
		t.Error("Hostname is empty")
	}
	if snap.CPUPercent != 0 {
		t.Errorf("first sample CPUPercent = %g, want warm-up 0", snap.CPUPercent)
	}
	if snap.CPUCountLogical <= 0 {
		t.Errorf("CPUCountLogical = %d", snap.CPUCountLogical)
	}
	if snap.CPUCountPhysical <= 0 {
		t.Errorf("CPUCountPhysical = %d", snap.CPUCountPhysical)
	}
	if snap.Memory.Total == 0 {
		t.Error("Memory.Total is zero")
	}
	if snap.Disk.Used+snap.Disk.Free != snap.Disk.Total {
		t.Error("disk fields not internally consistent")
	}

	if _, err := time.Parse(timestampLayout, snap.Timestamp); err != nil {
		t.Errorf("Timestamp %q does not match layout: %v", snap.Timestamp, err)
	}

	// Second sample with threaded state must stay within bounds.
	snap2, _, err := s.Sample(ctx, state)
	if err != nil {
		t.Fatalf("second Sample() error: %v", err)
	}
	if snap2.CPUPercent < 0 || snap2.CPUPercent > 100 {
		t.Errorf("CPUPercent = %g, out of [0,100]", snap2.CPUPercent)
	}
}
