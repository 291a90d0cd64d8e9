package host

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ARPTable looks up the hardware address the local system has cached for an IP.
type ARPTable interface {
	Lookup(ctx context.Context, ip string) (string, error)
}

// SystemARPTable reads the operating system's neighbour cache.
// Linux reads /proc/net/arp; darwin and windows shell out to `arp -a`.
type SystemARPTable struct{}

// Compile-time interface guard.
var _ ARPTable = SystemARPTable{}

// Lookup returns the MAC cached for ip in AA:BB:CC:DD:EE:FF form.
func (SystemARPTable) Lookup(ctx context.Context, ip string) (string, error) {
	output, err := readARP(ctx, runtime.GOOS)
	if err != nil {
		return "", err
	}
	mac, ok := ParseARPOutput(output, runtime.GOOS)[ip]
	if !ok {
		return "", fmt.Errorf("%w: no arp entry for %s", ErrUnreachable, ip)
	}
	return mac, nil
}

func readARP(ctx context.Context, platform string) (string, error) {
	switch platform {
	case "linux":
		data, err := os.ReadFile("/proc/net/arp")
		if err != nil {
			return "", fmt.Errorf("read arp table: %w", err)
		}
		return string(data), nil
	case "darwin", "windows":
		out, err := exec.CommandContext(ctx, "arp", "-a").Output()
		if err != nil {
			return "", fmt.Errorf("run arp: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAgent, platform)
	}
}

// ParseARPOutput parses the ARP table text for the given platform into an
// IP -> MAC map. Incomplete, zero and broadcast entries are skipped.
// Unknown platforms yield an empty map.
func ParseARPOutput(output, platform string) map[string]string {
	table := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		var ip, mac string
		switch platform {
		case "linux":
			// IP address  HW type  Flags  HW address  Mask  Device
			if len(fields) < 4 || fields[2] == "0x0" {
				continue
			}
			ip, mac = fields[0], fields[3]
		case "windows":
			if len(fields) < 3 {
				continue
			}
			ip, mac = fields[0], fields[1]
		case "darwin":
			// ? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
			if len(fields) < 4 || fields[2] != "at" {
				continue
			}
			ip, mac = strings.Trim(fields[1], "()"), fields[3]
		default:
			return table
		}

		if net.ParseIP(ip) == nil {
			continue
		}
		mac = normalizeMAC(mac)
		if mac == "" || mac == "00:00:00:00:00:00" || mac == "FF:FF:FF:FF:FF:FF" {
			continue
		}
		table[ip] = mac
	}
	return table
}

// normalizeMAC converts any common MAC notation to uppercase colon-separated
// form, padding single-digit octets as printed by BSD arp. Returns "" when
// the input is not a 6-octet hardware address.
func normalizeMAC(mac string) string {
	mac = strings.ReplaceAll(mac, "-", ":")
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return ""
	}
	for i, p := range parts {
		if len(p) == 1 {
			p = "0" + p
		}
		if len(p) != 2 {
			return ""
		}
		parts[i] = strings.ToUpper(p)
	}
	out := strings.Join(parts, ":")
	if _, err := net.ParseMAC(out); err != nil {
		return ""
	}
	return out
}
