package snmp

// UCD-SNMP-MIB load averages (laLoad, a DisplayString such as "0.10").
const (
	oidCPULoad1  = "1.3.6.1.4.1.2021.10.1.3.1"
	oidCPULoad5  = "1.3.6.1.4.1.2021.10.1.3.2"
	oidCPULoad15 = "1.3.6.1.4.1.2021.10.1.3.3"
)

// UCD-SNMP-MIB raw CPU counters, in ticks (1/100 s).
const (
	oidCPURawUser   = "1.3.6.1.4.1.2021.11.50.0"
	oidCPURawNice   = "1.3.6.1.4.1.2021.11.51.0"
	oidCPURawSystem = "1.3.6.1.4.1.2021.11.52.0"
)

// HOST-RESOURCES-MIB hrProcessorLoad; one row per processor.
const oidProcessorLoad = "1.3.6.1.2.1.25.3.3.1.2"

// UCD-SNMP-MIB memory, in kB.
const (
	oidMemoryTotal = "1.3.6.1.4.1.2021.4.5.0"
	oidMemoryAvail = "1.3.6.1.4.1.2021.4.6.0"
)

// UCD-SNMP-MIB dskTable. Sizes are in kB.
const (
	oidDiskIndex  = "1.3.6.1.4.1.2021.9.1.1"
	oidDiskPath   = "1.3.6.1.4.1.2021.9.1.2"
	oidDiskDevice = "1.3.6.1.4.1.2021.9.1.3"
	oidDiskSize   = "1.3.6.1.4.1.2021.9.1.6"
	oidDiskUsed   = "1.3.6.1.4.1.2021.9.1.8"
)

// IF-MIB ifTable.
const (
	oidIfIndex       = "1.3.6.1.2.1.2.2.1.1"
	oidIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	oidIfSpeed       = "1.3.6.1.2.1.2.2.1.5"
	oidIfPhysAddress = "1.3.6.1.2.1.2.2.1.6"
	oidIfInOctets    = "1.3.6.1.2.1.2.2.1.10"
	oidIfOutOctets   = "1.3.6.1.2.1.2.2.1.16"
	oidIfOutErrors   = "1.3.6.1.2.1.2.2.1.20"
)

// IP-MIB ipAdEntIfIndex: indexed by IPv4 address, value is the ifIndex.
const oidIPAddrIfIndex = "1.3.6.1.2.1.4.20.1.2"

const (
	kilobyte = 1024
	// tickNanos converts UCD raw CPU ticks (centiseconds) to nanoseconds.
	tickNanos = 10_000_000
)

func column(base, index string) string {
	return base + "." + index
}
