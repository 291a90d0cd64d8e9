package local

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/host"
	"github.com/HerbHall/hwmeter/internal/inspector"
)

func fakeSource() Source {
	return Source{
		LoadAvg: func(context.Context) (*load.AvgStat, error) {
			return &load.AvgStat{Load1: 0.5, Load5: 0.25, Load15: 0.125}, nil
		},
		CPUTimes: func(context.Context, bool) ([]cpu.TimesStat, error) {
			return []cpu.TimesStat{{CPU: "cpu-total", User: 1.5, Nice: 0.25, System: 0.25, Idle: 100}}, nil
		},
		CPUCounts: func(context.Context, bool) (int, error) { return 4, nil },
		VirtualMemory: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 8 << 30, Available: 6 << 30}, nil
		},
		Partitions: func(context.Context, bool) ([]disk.PartitionStat, error) {
			return []disk.PartitionStat{
				{Device: "/dev/sda1", Mountpoint: "/"},
				{Device: "tmpfs", Mountpoint: "/run/empty"},
				{Device: "/dev/sdb1", Mountpoint: "/broken"},
			}, nil
		},
		Usage: func(_ context.Context, path string) (*disk.UsageStat, error) {
			switch path {
			case "/":
				return &disk.UsageStat{Path: "/", Total: 100 << 30, Used: 40 << 30}, nil
			case "/run/empty":
				return &disk.UsageStat{Path: path}, nil
			default:
				return nil, errors.New("permission denied")
			}
		},
		IOCounters: func(context.Context, bool) ([]psnet.IOCountersStat, error) {
			return []psnet.IOCountersStat{
				{Name: "lo", BytesRecv: 10, BytesSent: 10},
				{Name: "eth0", BytesRecv: 1234, BytesSent: 5678, Errout: 2},
			}, nil
		},
		Interfaces: func(context.Context) (psnet.InterfaceStatList, error) {
			return psnet.InterfaceStatList{
				{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
				{Name: "eth0", HardwareAddr: "02:42:ac:11:00:02", Flags: []string{"up"},
					Addrs: psnet.InterfaceAddrList{{Addr: "fe80::1/64"}, {Addr: "10.0.0.9/24"}}},
			}, nil
		},
		LinkSpeed: func(name string) uint64 {
			if name == "eth0" {
				return 125_000_000
			}
			return 0
		},
	}
}

var localHost = host.New("127.0.0.1", host.Options{}, host.Identity{ID: "0242ac110002"})

func TestRemoteHostNotImplemented(t *testing.T) {
	insp := New(fakeSource(), zap.NewNop())
	remote := host.New("10.0.0.5", host.Options{}, host.Identity{})

	_, err := insp.InspectMemory(context.Background(), remote)
	assert.ErrorIs(t, err, inspector.ErrNotImplemented)
	assert.False(t, inspector.IsInspectionError(err))

	_, err = insp.InspectDisks(context.Background(), remote)
	assert.ErrorIs(t, err, inspector.ErrNotImplemented)
}

func TestInspectCPU(t *testing.T) {
	stats, err := New(fakeSource(), zap.NewNop()).InspectCPU(context.Background(), localHost)
	require.NoError(t, err)
	assert.Equal(t, inspector.CPUStats{Load1: 0.5, Load5: 0.25, Load15: 0.125}, stats)
}

func TestInspectCPUTime(t *testing.T) {
	times, err := New(fakeSource(), zap.NewNop()).InspectCPUTime(context.Background(), localHost)
	require.NoError(t, err)
	assert.Equal(t, 4, times.Number)
	assert.Equal(t, uint64(2_000_000_000), times.Time)
}

func TestInspectMemory(t *testing.T) {
	stats, err := New(fakeSource(), zap.NewNop()).InspectMemory(context.Background(), localHost)
	require.NoError(t, err)
	assert.Equal(t, inspector.MemoryStats{Total: 8 << 30, Used: 2 << 30}, stats)
}

func TestInspectMemoryError(t *testing.T) {
	src := fakeSource()
	src.VirtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("no /proc")
	}
	_, err := New(src, zap.NewNop()).InspectMemory(context.Background(), localHost)
	assert.True(t, inspector.IsInspectionError(err))

	var ie *inspector.Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, Name, ie.Inspector)
	assert.Equal(t, inspector.MetricMemory, ie.Metric)
}

func TestInspectDisks(t *testing.T) {
	disks, err := New(fakeSource(), zap.NewNop()).InspectDisks(context.Background(), localHost)
	require.NoError(t, err)
	require.Len(t, disks, 1)
	assert.Equal(t, inspector.Disk{Device: "/dev/sda1", Path: "/"}, disks[0].Disk)
	assert.Equal(t, inspector.DiskStats{Size: 100 << 30, Used: 40 << 30}, disks[0].Stats)
}

func TestInspectNetwork(t *testing.T) {
	insp := New(fakeSource(), zap.NewNop())

	nics, err := insp.InspectNetwork(context.Background(), localHost)
	require.NoError(t, err)
	require.Len(t, nics, 1)
	assert.Equal(t, inspector.Interface{Index: "eth0", Name: "eth0", MAC: "02:42:ac:11:00:02", IP: "10.0.0.9"}, nics[0].Interface)
	assert.Equal(t, inspector.InterfaceStats{Bandwidth: 125_000_000, RxBytes: 1234, TxBytes: 5678, Error: 2}, nics[0].Stats)

	require.NoError(t, insp.SetConfiguration(map[string]any{"filter_loopback": "false"}))
	nics, err = insp.InspectNetwork(context.Background(), localHost)
	require.NoError(t, err)
	assert.Len(t, nics, 2)
}

func TestRegister(t *testing.T) {
	reg := inspector.NewRegistry(zap.NewNop())
	require.NoError(t, Register(reg))
	built, err := reg.Build([]string{Name}, nil, nil)
	require.NoError(t, err)
	require.Len(t, built, 1)
	assert.Equal(t, Name, built[0].Name())
}
