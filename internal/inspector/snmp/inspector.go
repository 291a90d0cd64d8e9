// Package snmp implements the hardware inspector that reads UCD-SNMP-MIB,
// HOST-RESOURCES-MIB and IF-MIB objects from an SNMP v1/v2c agent.
package snmp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/host"
	"github.com/HerbHall/hwmeter/internal/inspector"
)

// Name is the registry and configuration key of this inspector.
const Name = "snmp"

// Compile-time interface guards.
var (
	_ inspector.CPUInspector     = (*Inspector)(nil)
	_ inspector.CPUTimeInspector = (*Inspector)(nil)
	_ inspector.MemoryInspector  = (*Inspector)(nil)
	_ inspector.DiskInspector    = (*Inspector)(nil)
	_ inspector.NetworkInspector = (*Inspector)(nil)
	_ inspector.Configurable     = (*Inspector)(nil)
)

// Inspector reads hardware statistics over SNMP.
type Inspector struct {
	transport Transport
	logger    *zap.Logger

	mu   sync.RWMutex
	conf Config
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithTransport replaces the gosnmp transport.
func WithTransport(t Transport) Option {
	return func(i *Inspector) { i.transport = t }
}

// New creates an SNMP inspector with default configuration.
func New(logger *zap.Logger, opts ...Option) *Inspector {
	i := &Inspector{logger: logger}
	for _, opt := range opts {
		opt(i)
	}
	if i.transport == nil {
		i.transport = NewGoSNMPTransport(logger)
	}
	return i
}

// Register adds the SNMP inspector factory to reg.
func Register(reg *inspector.Registry) error {
	return reg.Register(Name, func(logger *zap.Logger) (inspector.Inspector, error) {
		return New(logger), nil
	})
}

// Name returns "snmp".
func (i *Inspector) Name() string { return Name }

// SetConfiguration sets the inspector-wide defaults.
func (i *Inspector) SetConfiguration(raw map[string]any) error {
	conf, err := DecodeConfig(raw)
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.conf = conf
	i.mu.Unlock()

	if t, ok := i.transport.(*GoSNMPTransport); ok {
		t.SetRateLimit(conf.RateLimit)
	}
	return nil
}

func (i *Inspector) config() Config {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.conf
}

func (i *Inspector) endpoint(h *host.Host) (Endpoint, error) {
	ep, err := ResolveEndpoint(h, i.config())
	if err != nil {
		return Endpoint{}, inspector.Failed("%w", err)
	}
	return ep, nil
}

// InspectCPU reads the 1, 5 and 15 minute load averages.
func (i *Inspector) InspectCPU(ctx context.Context, h *host.Host) (inspector.CPUStats, error) {
	stats, err := i.inspectCPU(ctx, h)
	return stats, inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricCPU)
}

func (i *Inspector) inspectCPU(ctx context.Context, h *host.Host) (inspector.CPUStats, error) {
	ep, err := i.endpoint(h)
	if err != nil {
		return inspector.CPUStats{}, err
	}
	pdus, err := i.getAll(ctx, ep, oidCPULoad1, oidCPULoad5, oidCPULoad15)
	if err != nil {
		return inspector.CPUStats{}, err
	}
	var loads [3]float64
	for n, pdu := range pdus {
		if loads[n], err = toFloat(pdu); err != nil {
			return inspector.CPUStats{}, err
		}
	}
	return inspector.CPUStats{Load1: loads[0], Load5: loads[1], Load15: loads[2]}, nil
}

// InspectCPUTime reads the processor count and the cumulative busy time.
func (i *Inspector) InspectCPUTime(ctx context.Context, h *host.Host) (inspector.CPUTimes, error) {
	times, err := i.inspectCPUTime(ctx, h)
	return times, inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricCPUTime)
}

func (i *Inspector) inspectCPUTime(ctx context.Context, h *host.Host) (inspector.CPUTimes, error) {
	ep, err := i.endpoint(h)
	if err != nil {
		return inspector.CPUTimes{}, err
	}
	rows, err := i.transport.Walk(ctx, ep, oidProcessorLoad)
	if err != nil {
		return inspector.CPUTimes{}, err
	}
	if len(rows) == 0 {
		return inspector.CPUTimes{}, inspector.Failed("no rows under hrProcessorLoad")
	}
	pdus, err := i.getAll(ctx, ep, oidCPURawUser, oidCPURawNice, oidCPURawSystem)
	if err != nil {
		return inspector.CPUTimes{}, err
	}
	var ticks uint64
	for _, pdu := range pdus {
		v, err := toUint64(pdu)
		if err != nil {
			return inspector.CPUTimes{}, err
		}
		ticks += v
	}
	return inspector.CPUTimes{Number: len(rows), Time: ticks * tickNanos}, nil
}

// InspectMemory reads total and used real memory in bytes.
func (i *Inspector) InspectMemory(ctx context.Context, h *host.Host) (inspector.MemoryStats, error) {
	stats, err := i.inspectMemory(ctx, h)
	return stats, inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricMemory)
}

func (i *Inspector) inspectMemory(ctx context.Context, h *host.Host) (inspector.MemoryStats, error) {
	ep, err := i.endpoint(h)
	if err != nil {
		return inspector.MemoryStats{}, err
	}
	pdus, err := i.getAll(ctx, ep, oidMemoryTotal, oidMemoryAvail)
	if err != nil {
		return inspector.MemoryStats{}, err
	}
	total, err := toUint64(pdus[0])
	if err != nil {
		return inspector.MemoryStats{}, err
	}
	avail, err := toUint64(pdus[1])
	if err != nil {
		return inspector.MemoryStats{}, err
	}
	if avail > total {
		return inspector.MemoryStats{}, inspector.Failed("available memory %d kB exceeds total %d kB", avail, total)
	}
	return inspector.MemoryStats{
		Total: total * kilobyte,
		Used:  (total - avail) * kilobyte,
	}, nil
}

// InspectDisks enumerates dskTable. A disk whose values cannot be read is
// skipped; an unreachable agent aborts the whole call.
func (i *Inspector) InspectDisks(ctx context.Context, h *host.Host) ([]inspector.DiskUsage, error) {
	disks, err := i.inspectDisks(ctx, h)
	return disks, inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricDisk)
}

func (i *Inspector) inspectDisks(ctx context.Context, h *host.Host) ([]inspector.DiskUsage, error) {
	ep, err := i.endpoint(h)
	if err != nil {
		return nil, err
	}
	rows, err := i.transport.Walk(ctx, ep, oidDiskIndex)
	if err != nil {
		return nil, err
	}

	disks := make([]inspector.DiskUsage, 0, len(rows))
	for _, row := range rows {
		d, err := i.readDisk(ctx, ep, row.Index)
		if errors.Is(err, inspector.ErrEndpointUnreachable) {
			return nil, err
		}
		if err != nil {
			i.logger.Warn("skipping disk",
				zap.String("host", h.IPAddress()),
				zap.String("index", row.Index),
				zap.Error(err),
			)
			continue
		}
		disks = append(disks, d)
	}
	return disks, nil
}

func (i *Inspector) readDisk(ctx context.Context, ep Endpoint, index string) (inspector.DiskUsage, error) {
	pdus, err := i.getAll(ctx, ep,
		column(oidDiskPath, index),
		column(oidDiskDevice, index),
		column(oidDiskSize, index),
		column(oidDiskUsed, index),
	)
	if err != nil {
		return inspector.DiskUsage{}, err
	}
	path, err := toString(pdus[0])
	if err != nil {
		return inspector.DiskUsage{}, err
	}
	device, err := toString(pdus[1])
	if err != nil {
		return inspector.DiskUsage{}, err
	}
	size, err := toUint64(pdus[2])
	if err != nil {
		return inspector.DiskUsage{}, err
	}
	used, err := toUint64(pdus[3])
	if err != nil {
		return inspector.DiskUsage{}, err
	}
	return inspector.DiskUsage{
		Disk:  inspector.Disk{Device: device, Path: path},
		Stats: inspector.DiskStats{Size: size * kilobyte, Used: used * kilobyte},
	}, nil
}

// InspectNetwork enumerates ifTable, attaching each interface's IPv4
// address from ipAddrTable. Loopback interfaces are dropped unless
// filter_loopback is false.
func (i *Inspector) InspectNetwork(ctx context.Context, h *host.Host) ([]inspector.InterfaceUsage, error) {
	nics, err := i.inspectNetwork(ctx, h)
	return nics, inspector.Annotate(err, Name, h.IPAddress(), inspector.MetricNetwork)
}

func (i *Inspector) inspectNetwork(ctx context.Context, h *host.Host) ([]inspector.InterfaceUsage, error) {
	ep, err := i.endpoint(h)
	if err != nil {
		return nil, err
	}
	rows, err := i.transport.Walk(ctx, ep, oidIfIndex)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []inspector.InterfaceUsage{}, nil
	}
	addrs, err := i.interfaceAddresses(ctx, ep)
	if err != nil {
		if errors.Is(err, inspector.ErrEndpointUnreachable) {
			return nil, err
		}
		i.logger.Warn("reading interface addresses",
			zap.String("host", h.IPAddress()),
			zap.Error(err),
		)
	}

	filter := i.config().filterLoopback()
	nics := make([]inspector.InterfaceUsage, 0, len(rows))
	for _, row := range rows {
		ip := addrs[row.Index]
		if filter && isLoopback(ip) {
			continue
		}
		nic, err := i.readInterface(ctx, ep, row.Index)
		if errors.Is(err, inspector.ErrEndpointUnreachable) {
			return nil, err
		}
		if err != nil {
			i.logger.Warn("skipping interface",
				zap.String("host", h.IPAddress()),
				zap.String("index", row.Index),
				zap.Error(err),
			)
			continue
		}
		nic.Interface.IP = ip
		nics = append(nics, nic)
	}
	return nics, nil
}

// interfaceAddresses maps ifIndex to the interface's IPv4 address. When an
// interface has several, the first in walk order wins.
func (i *Inspector) interfaceAddresses(ctx context.Context, ep Endpoint) (map[string]string, error) {
	rows, err := i.transport.Walk(ctx, ep, oidIPAddrIfIndex)
	if err != nil {
		return map[string]string{}, err
	}
	addrs := make(map[string]string, len(rows))
	for _, row := range rows {
		ifIndex, err := toUint64(row.PDU)
		if err != nil {
			continue
		}
		key := strconv.FormatUint(ifIndex, 10)
		if _, seen := addrs[key]; !seen {
			addrs[key] = row.Index
		}
	}
	return addrs, nil
}

func (i *Inspector) readInterface(ctx context.Context, ep Endpoint, index string) (inspector.InterfaceUsage, error) {
	pdus, err := i.getAll(ctx, ep,
		column(oidIfDescr, index),
		column(oidIfPhysAddress, index),
		column(oidIfSpeed, index),
		column(oidIfInOctets, index),
		column(oidIfOutOctets, index),
		column(oidIfOutErrors, index),
	)
	if err != nil {
		return inspector.InterfaceUsage{}, err
	}
	name, err := toString(pdus[0])
	if err != nil {
		return inspector.InterfaceUsage{}, err
	}
	mac, err := toMAC(pdus[1])
	if err != nil {
		return inspector.InterfaceUsage{}, err
	}
	var counters [4]uint64
	for n, pdu := range pdus[2:] {
		if counters[n], err = toUint64(pdu); err != nil {
			return inspector.InterfaceUsage{}, err
		}
	}
	return inspector.InterfaceUsage{
		Interface: inspector.Interface{Index: index, Name: name, MAC: mac},
		Stats: inspector.InterfaceStats{
			Bandwidth: counters[0] / 8,
			RxBytes:   counters[1],
			TxBytes:   counters[2],
			Error:     counters[3],
		},
	}, nil
}

// getAll fetches each OID in turn and stops at the first failure.
func (i *Inspector) getAll(ctx context.Context, ep Endpoint, oids ...string) ([]gosnmp.SnmpPDU, error) {
	pdus := make([]gosnmp.SnmpPDU, len(oids))
	for n, oid := range oids {
		pdu, err := i.transport.Get(ctx, ep, oid)
		if err != nil {
			return nil, err
		}
		pdus[n] = pdu
	}
	return pdus, nil
}

var loopbackNet = &net.IPNet{IP: net.IPv4(127, 0, 0, 0), Mask: net.CIDRMask(8, 32)}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && loopbackNet.Contains(parsed)
}
