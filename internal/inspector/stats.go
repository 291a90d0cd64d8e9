package inspector

// CPUStats holds the 1, 5 and 15 minute load averages of a host.
type CPUStats struct {
	Load1  float64 `json:"cpu_1_min_load"`
	Load5  float64 `json:"cpu_5_min_load"`
	Load15 float64 `json:"cpu_15_min_load"`
}

// CPUTimes is the cumulative CPU shape: processor count plus the total
// non-idle CPU time consumed since boot, in nanoseconds.
type CPUTimes struct {
	Number int    `json:"number"`
	Time   uint64 `json:"time"`
}

// MemoryStats holds physical memory totals in bytes.
type MemoryStats struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
}

// Disk identifies a mounted disk.
type Disk struct {
	Device string `json:"device"`
	Path   string `json:"path"`
}

// DiskStats holds disk capacity in bytes.
type DiskStats struct {
	Size uint64 `json:"size"`
	Used uint64 `json:"used"`
}

// DiskUsage pairs a disk with its statistics.
type DiskUsage struct {
	Disk  Disk
	Stats DiskStats
}

// Interface identifies a network interface. Index is unique per host
// (the SNMP ifIndex, or the NIC name locally); Name need not be.
type Interface struct {
	Index string `json:"index"`
	Name  string `json:"name"`
	MAC   string `json:"mac"`
	IP    string `json:"ip"`
}

// InterfaceStats holds interface counters. Bandwidth is in bytes per second;
// a value of 0 means the device did not report a speed.
type InterfaceStats struct {
	Bandwidth uint64 `json:"bandwidth"`
	RxBytes   uint64 `json:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes"`
	Error     uint64 `json:"error"`
}

// InterfaceUsage pairs an interface with its statistics.
type InterfaceUsage struct {
	Interface Interface
	Stats     InterfaceStats
}
