// Package local implements an inspector for the machine hwmeter itself runs
// on, reading statistics through gopsutil instead of SNMP. It only serves
// loopback hosts; any other host gets ErrNotImplemented so the Manager
// moves on to the next inspector.
package local

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/host"
	"github.com/HerbHall/hwmeter/internal/inspector"
)

// Name is the registry and configuration key of this inspector.
const Name = "local"

// Compile-time interface guards.
var (
	_ inspector.CPUInspector     = (*Inspector)(nil)
	_ inspector.CPUTimeInspector = (*Inspector)(nil)
	_ inspector.MemoryInspector  = (*Inspector)(nil)
	_ inspector.DiskInspector    = (*Inspector)(nil)
	_ inspector.NetworkInspector = (*Inspector)(nil)
	_ inspector.Configurable     = (*Inspector)(nil)
)

// Source is the set of gopsutil calls the inspector makes.
type Source struct {
	LoadAvg       func(ctx context.Context) (*load.AvgStat, error)
	CPUTimes      func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
	CPUCounts     func(ctx context.Context, logical bool) (int, error)
	VirtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Partitions    func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	Usage         func(ctx context.Context, path string) (*disk.UsageStat, error)
	IOCounters    func(ctx context.Context, pernic bool) ([]psnet.IOCountersStat, error)
	Interfaces    func(ctx context.Context) (psnet.InterfaceStatList, error)
	// LinkSpeed returns the link speed of a NIC in bytes per second, or 0
	// when unknown.
	LinkSpeed func(name string) uint64
}

// SystemSource reads the running machine.
func SystemSource() Source {
	return Source{
		LoadAvg:       load.AvgWithContext,
		CPUTimes:      cpu.TimesWithContext,
		CPUCounts:     cpu.CountsWithContext,
		VirtualMemory: mem.VirtualMemoryWithContext,
		Partitions:    disk.PartitionsWithContext,
		Usage:         disk.UsageWithContext,
		IOCounters:    psnet.IOCountersWithContext,
		Interfaces:    psnet.InterfacesWithContext,
		LinkSpeed:     sysfsLinkSpeed,
	}
}

// Config is the local inspector configuration.
type Config struct {
	FilterLoopback *bool `mapstructure:"filter_loopback"`
	AllPartitions  bool  `mapstructure:"all_partitions"`
}

// Inspector reads the local machine with gopsutil.
type Inspector struct {
	src    Source
	logger *zap.Logger

	mu   sync.RWMutex
	conf Config
}

// New creates a local inspector over src.
func New(src Source, logger *zap.Logger) *Inspector {
	return &Inspector{src: src, logger: logger}
}

// Register adds the local inspector factory to reg.
func Register(reg *inspector.Registry) error {
	return reg.Register(Name, func(logger *zap.Logger) (inspector.Inspector, error) {
		return New(SystemSource(), logger), nil
	})
}

// Name returns "local".
func (i *Inspector) Name() string { return Name }

// SetConfiguration sets filter_loopback and all_partitions.
func (i *Inspector) SetConfiguration(raw map[string]any) error {
	var conf Config
	if len(raw) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &conf,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(raw); err != nil {
			return fmt.Errorf("decode local config: %w", err)
		}
	}
	i.mu.Lock()
	i.conf = conf
	i.mu.Unlock()
	return nil
}

func (i *Inspector) config() Config {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.conf
}

func serves(h *host.Host) error {
	if !h.IsLocal() {
		return inspector.NotImplemented("local inspector only serves the agent's own host")
	}
	return nil
}

// InspectCPU reads the load averages.
func (i *Inspector) InspectCPU(ctx context.Context, h *host.Host) (inspector.CPUStats, error) {
	if err := serves(h); err != nil {
		return inspector.CPUStats{}, inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricCPU)
	}
	avg, err := i.src.LoadAvg(ctx)
	if err != nil {
		return inspector.CPUStats{}, inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricCPU)
	}
	return inspector.CPUStats{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}

// InspectCPUTime reads the logical CPU count and the cumulative user, nice
// and system time across all CPUs.
func (i *Inspector) InspectCPUTime(ctx context.Context, h *host.Host) (inspector.CPUTimes, error) {
	annotate := func(err error) error { return inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricCPUTime) }
	if err := serves(h); err != nil {
		return inspector.CPUTimes{}, annotate(err)
	}
	cores, err := i.src.CPUCounts(ctx, true)
	if err != nil {
		return inspector.CPUTimes{}, annotate(err)
	}
	if cores < 1 {
		return inspector.CPUTimes{}, annotate(inspector.Failed("cpu count %d", cores))
	}
	times, err := i.src.CPUTimes(ctx, false)
	if err != nil {
		return inspector.CPUTimes{}, annotate(err)
	}
	if len(times) == 0 {
		return inspector.CPUTimes{}, annotate(inspector.Failed("no cpu times"))
	}
	busy := times[0].User + times[0].Nice + times[0].System
	return inspector.CPUTimes{
		Number: cores,
		Time:   uint64(busy * float64(time.Second)),
	}, nil
}

// InspectMemory reads physical memory. Used excludes reclaimable memory.
func (i *Inspector) InspectMemory(ctx context.Context, h *host.Host) (inspector.MemoryStats, error) {
	annotate := func(err error) error { return inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricMemory) }
	if err := serves(h); err != nil {
		return inspector.MemoryStats{}, annotate(err)
	}
	vm, err := i.src.VirtualMemory(ctx)
	if err != nil {
		return inspector.MemoryStats{}, annotate(err)
	}
	if vm.Available > vm.Total {
		return inspector.MemoryStats{}, annotate(inspector.Failed("available memory exceeds total"))
	}
	return inspector.MemoryStats{Total: vm.Total, Used: vm.Total - vm.Available}, nil
}

// InspectDisks lists mounted partitions. Partitions whose usage cannot be
// read, or that report a zero size, are skipped.
func (i *Inspector) InspectDisks(ctx context.Context, h *host.Host) ([]inspector.DiskUsage, error) {
	annotate := func(err error) error { return inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricDisk) }
	if err := serves(h); err != nil {
		return nil, annotate(err)
	}
	parts, err := i.src.Partitions(ctx, i.config().AllPartitions)
	if err != nil {
		return nil, annotate(err)
	}

	disks := make([]inspector.DiskUsage, 0, len(parts))
	for _, p := range parts {
		usage, err := i.src.Usage(ctx, p.Mountpoint)
		if err != nil {
			i.logger.Warn("skipping partition",
				zap.String("path", p.Mountpoint),
				zap.Error(err),
			)
			continue
		}
		if usage.Total == 0 {
			continue
		}
		disks = append(disks, inspector.DiskUsage{
			Disk:  inspector.Disk{Device: p.Device, Path: p.Mountpoint},
			Stats: inspector.DiskStats{Size: usage.Total, Used: usage.Used},
		})
	}
	return disks, nil
}

// InspectNetwork lists NICs with their counters. The IP is the first IPv4
// address of the NIC.
func (i *Inspector) InspectNetwork(ctx context.Context, h *host.Host) ([]inspector.InterfaceUsage, error) {
	annotate := func(err error) error { return inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricNetwork) }
	if err := serves(h); err != nil {
		return nil, annotate(err)
	}
	ifaces, err := i.src.Interfaces(ctx)
	if err != nil {
		return nil, annotate(err)
	}
	counters, err := i.src.IOCounters(ctx, true)
	if err != nil {
		return nil, annotate(err)
	}
	byName := make(map[string]psnet.IOCountersStat, len(counters))
	for _, c := range counters {
		byName[c.Name] = c
	}

	filter := i.config().FilterLoopback == nil || *i.config().FilterLoopback
	nics := make([]inspector.InterfaceUsage, 0, len(ifaces))
	for _, iface := range ifaces {
		ip := firstIPv4(iface.Addrs)
		if filter && (isLoopbackFlagged(iface.Flags) || strings.HasPrefix(ip, "127.")) {
			continue
		}
		c, ok := byName[iface.Name]
		if !ok {
			i.logger.Debug("no counters for interface", zap.String("name", iface.Name))
			continue
		}
		var speed uint64
		if i.src.LinkSpeed != nil {
			speed = i.src.LinkSpeed(iface.Name)
		}
		nics = append(nics, inspector.InterfaceUsage{
			Interface: inspector.Interface{Index: iface.Name, Name: iface.Name, MAC: iface.HardwareAddr, IP: ip},
			Stats: inspector.InterfaceStats{
				Bandwidth: speed,
				RxBytes:   c.BytesRecv,
				TxBytes:   c.BytesSent,
				Error:     c.Errout,
			},
		})
	}
	return nics, nil
}

func firstIPv4(addrs psnet.InterfaceAddrList) string {
	for _, a := range addrs {
		ip, _, err := net.ParseCIDR(a.Addr)
		if err != nil {
			ip = net.ParseIP(a.Addr)
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

func isLoopbackFlagged(flags []string) bool {
	for _, f := range flags {
		if f == "loopback" {
			return true
		}
	}
	return false
}

// sysfsLinkSpeed reads /sys/class/net/<name>/speed (Mbit/s). Virtual and
// down links report -1 or nothing.
func sysfsLinkSpeed(name string) uint64 {
	raw, err := os.ReadFile(filepath.Join("/sys/class/net", name, "speed"))
	if err != nil {
		return 0
	}
	mbps, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || mbps <= 0 {
		return 0
	}
	return uint64(mbps) * 1_000_000 / 8
}
